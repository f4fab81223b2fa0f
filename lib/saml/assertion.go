// Package saml decodes the assertion Okta's AWS app returns and resolves
// which federated role to assume from it.
package saml

import (
	"encoding/base64"
	"encoding/xml"
	"strings"

	"golang.org/x/xerrors"
)

const roleAttributeName = "https://aws.amazon.com/SAML/Attributes/Role"

// Response is the subset of a SAML 2.0 response document we care about.
type Response struct {
	XMLName   xml.Name
	Assertion Assertion `xml:"Assertion"`
}

type Assertion struct {
	XMLName            xml.Name
	AttributeStatement AttributeStatement `xml:"AttributeStatement"`
}

type AttributeStatement struct {
	XMLName    xml.Name
	Attributes []Attribute `xml:"Attribute"`
}

type Attribute struct {
	XMLName         xml.Name
	Name            string           `xml:"Name,attr"`
	AttributeValues []AttributeValue `xml:"AttributeValue"`
}

type AttributeValue struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

// Decode parses a base64-encoded SAML assertion as handed back in the
// SAMLResponse form input.
func Decode(assertion string) (*Response, error) {
	raw, err := base64.StdEncoding.DecodeString(assertion)
	if err != nil {
		return nil, xerrors.Errorf("decoding SAML assertion: %w", err)
	}

	resp := &Response{}
	if err := xml.Unmarshal(raw, resp); err != nil {
		return nil, xerrors.Errorf("parsing SAML assertion: %w", err)
	}
	return resp, nil
}

// AssumableRoles extracts the (IdP, role) pairs from the assertion's Role
// attribute, preserving the order they appear in the XML. Okta will emit
// either ARN first in the comma-joined value; AWS documents role-first but
// accepts both, and so do we.
func (r *Response) AssumableRoles() ([]AssumableRole, error) {
	var roles []AssumableRole
	for _, a := range r.Assertion.AttributeStatement.Attributes {
		if a.Name != roleAttributeName {
			continue
		}
		for _, v := range a.AttributeValues {
			tokens := strings.Split(strings.TrimSpace(v.Value), ",")
			if len(tokens) != 2 {
				continue
			}
			switch {
			case strings.Contains(tokens[0], ":saml-provider/"):
				roles = append(roles, NewAssumableRole(tokens[0], tokens[1]))
			case strings.Contains(tokens[1], ":saml-provider/"):
				roles = append(roles, NewAssumableRole(tokens[1], tokens[0]))
			default:
				return nil, xerrors.Errorf("unable to get roles from %q", v.Value)
			}
		}
	}
	return roles, nil
}
