package mfa

import (
	log "github.com/sirupsen/logrus"

	"github.com/washingtonpost/clokta-go/lib/fail"
	"github.com/washingtonpost/clokta-go/lib/okta"
	"github.com/washingtonpost/clokta-go/lib/ui"
)

// Choice is a resolved factor: the Okta-reported factor (its verify URL
// is needed for the challenge) plus the catalog label used when saving
// the choice as a preference.
type Choice struct {
	Factor okta.Factor
	Label  string

	// Chosen is true when the user picked interactively, which is the
	// only case where the preference should be re-persisted.
	Chosen bool
}

// Selector resolves a single factor from the Okta-reported list, the
// supported-factor catalog and an optional stored preference label.
type Selector struct {
	Factors    []okta.Factor
	Preference string
	Catalog    []CatalogEntry
	UI         *ui.UI
	Prompter   ui.Prompter
}

// option pairs a catalog entry with the Okta factor it matched.
type option struct {
	entry  CatalogEntry
	factor okta.Factor
}

// Select resolves the factor to use: the sole usable factor, the stored
// preference (unless forcePrompt), or an interactive choice over the
// usable intersection.
func (s *Selector) Select(forcePrompt bool) (Choice, error) {
	options := s.intersect()
	if len(options) == 0 {
		return Choice{}, fail.Newf(fail.ExitMFA,
			"none of your enrolled MFA factors are supported by this tool")
	}

	if len(s.Factors) == 1 {
		// The sole enrolled factor survived the intersection, so there is
		// nothing to choose.
		opt := options[0]
		log.Debugf("using only available factor: %s", opt.entry.Prompt)
		return Choice{Factor: opt.factor, Label: opt.entry.Prompt}, nil
	}

	if s.Preference != "" && !forcePrompt {
		for _, opt := range options {
			if opt.entry.Prompt == s.Preference {
				log.Debugf("using preferred factor: %s", s.Preference)
				return Choice{Factor: opt.factor, Label: opt.entry.Prompt}, nil
			}
		}
		prompts := make([]string, 0, len(options))
		for _, opt := range options {
			prompts = append(prompts, opt.entry.Prompt)
		}
		return Choice{}, fail.Newf(fail.ExitMFA,
			"the MFA option %q in your configuration file is not available; available options are %v",
			s.Preference, prompts)
	}

	labels := make([]string, 0, len(options))
	for _, opt := range options {
		labels = append(labels, opt.entry.Prompt)
	}
	choice, err := s.Prompter.Choose("Choose a MFA type to use", labels)
	if err != nil {
		return Choice{}, err
	}

	opt := options[choice-1]
	log.Debugf("using chosen factor: %s", opt.entry.Prompt)
	return Choice{Factor: opt.factor, Label: opt.entry.Prompt, Chosen: true}, nil
}

// intersect joins the catalog against the Okta factor list on
// (provider, factorType), keeping catalog order.
func (s *Selector) intersect() []option {
	catalog := s.Catalog
	if catalog == nil {
		catalog = SupportedFactors()
	}

	var options []option
	for _, entry := range catalog {
		for _, factor := range s.Factors {
			if entry.Provider == factor.Provider && entry.FactorType == factor.FactorType {
				options = append(options, option{entry: entry, factor: factor})
			}
		}
	}
	return options
}
