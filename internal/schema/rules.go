// Package schema validates entries against structural and per-class
// business rules: required attributes, allowed attributes in strict
// mode, and cross-entry checks over whole collections.
package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ClassRule lists the attributes one object class requires and
// additionally allows. An empty rule declares nothing and never vetoes
// an attribute in strict mode.
type ClassRule struct {
	Required []string `yaml:"required"`
	Allowed  []string `yaml:"allowed"`
}

// Permits reports whether the class lists attr as required or allowed,
// compared case-insensitively.
func (c ClassRule) Permits(attr string) bool {
	for _, a := range c.Required {
		if strings.EqualFold(a, attr) {
			return true
		}
	}
	for _, a := range c.Allowed {
		if strings.EqualFold(a, attr) {
			return true
		}
	}
	return false
}

// Declared reports whether the class carries any attribute lists. Only
// declared classes participate in strict closed-world checks.
func (c ClassRule) Declared() bool {
	return len(c.Required) > 0 || len(c.Allowed) > 0
}

// RuleSet maps object-class names to their rules. Strict switches on
// closed-world checking: every attribute of an entry must then be
// permitted by at least one of its asserted classes.
type RuleSet struct {
	Strict  bool                 `yaml:"strict"`
	Classes map[string]ClassRule `yaml:"classes"`
}

// Class looks up a class rule case-insensitively and returns the
// canonical spelling from the rule set alongside it.
func (r *RuleSet) Class(name string) (string, ClassRule, bool) {
	if c, ok := r.Classes[name]; ok {
		return name, c, true
	}
	for k, c := range r.Classes {
		if strings.EqualFold(k, name) {
			return k, c, true
		}
	}
	return "", ClassRule{}, false
}

// LoadRuleSet reads a YAML rule-set file:
//
//	strict: true
//	classes:
//	  person:
//	    required: [cn, sn]
//	    allowed: [userPassword, telephoneNumber]
func LoadRuleSet(path string) (*RuleSet, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read rule set: %w", err)
	}
	rs, err := ParseRuleSet(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rs, nil
}

// ParseRuleSet parses YAML rule-set content.
func ParseRuleSet(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("failed to parse rule set: %w", err)
	}
	if rs.Classes == nil {
		rs.Classes = map[string]ClassRule{}
	}
	for name, c := range rs.Classes {
		for _, attr := range append(append([]string{}, c.Required...), c.Allowed...) {
			if strings.TrimSpace(attr) == "" {
				return nil, fmt.Errorf("class %s lists an empty attribute name", name)
			}
		}
	}
	return &rs, nil
}

// DefaultRuleSet covers the standard classes of RFC 4519 and the
// inetOrgPerson schema, superclass chains flattened into each entry so
// a class rule stands on its own. Strict is off; callers opt in.
func DefaultRuleSet() *RuleSet {
	personAllowed := []string{"userPassword", "telephoneNumber", "seeAlso", "description"}
	orgPersonAllowed := append([]string{
		"title", "ou", "street", "postalAddress", "postalCode",
		"postOfficeBox", "physicalDeliveryOfficeName", "facsimileTelephoneNumber",
		"st", "l",
	}, personAllowed...)
	inetOrgAllowed := append([]string{
		"uid", "mail", "displayName", "givenName", "initials",
		"employeeNumber", "employeeType", "departmentNumber", "jpegPhoto",
		"labeledURI", "manager", "mobile", "pager", "homePhone",
		"homePostalAddress", "roomNumber", "secretary", "carLicense",
		"preferredLanguage", "businessCategory", "o", "photo", "audio",
		"userCertificate", "userSMIMECertificate", "userPKCS12",
		"x500uniqueIdentifier",
	}, orgPersonAllowed...)
	placeAllowed := []string{
		"description", "street", "postalAddress", "postalCode",
		"telephoneNumber", "facsimileTelephoneNumber", "st", "l",
		"seeAlso", "businessCategory", "userPassword",
	}

	return &RuleSet{
		Classes: map[string]ClassRule{
			"top": {},
			"person": {
				Required: []string{"cn", "sn"},
				Allowed:  personAllowed,
			},
			"organizationalPerson": {
				Required: []string{"cn", "sn"},
				Allowed:  orgPersonAllowed,
			},
			"inetOrgPerson": {
				Required: []string{"cn", "sn"},
				Allowed:  inetOrgAllowed,
			},
			"organizationalUnit": {
				Required: []string{"ou"},
				Allowed:  placeAllowed,
			},
			"organization": {
				Required: []string{"o"},
				Allowed:  placeAllowed,
			},
			"organizationalRole": {
				Required: []string{"cn"},
				Allowed: []string{
					"ou", "seeAlso", "roleOccupant", "street", "postalAddress",
					"postalCode", "telephoneNumber", "st", "l", "description",
				},
			},
			"groupOfNames": {
				Required: []string{"cn", "member"},
				Allowed:  []string{"businessCategory", "seeAlso", "owner", "ou", "o", "description"},
			},
			"groupOfUniqueNames": {
				Required: []string{"cn", "uniqueMember"},
				Allowed:  []string{"businessCategory", "seeAlso", "owner", "ou", "o", "description"},
			},
			"domain": {
				Required: []string{"dc"},
				Allowed:  append([]string{"o", "associatedName"}, placeAllowed...),
			},
			"dcObject": {
				Required: []string{"dc"},
			},
			"country": {
				Required: []string{"c"},
				Allowed:  []string{"searchGuide", "description"},
			},
			"account": {
				Required: []string{"uid"},
				Allowed:  []string{"description", "seeAlso", "l", "o", "ou", "host"},
			},
			"simpleSecurityObject": {
				Required: []string{"userPassword"},
			},
			"posixAccount": {
				Required: []string{"cn", "uid", "uidNumber", "gidNumber", "homeDirectory"},
				Allowed:  []string{"userPassword", "loginShell", "gecos", "description"},
			},
			"posixGroup": {
				Required: []string{"cn", "gidNumber"},
				Allowed:  []string{"userPassword", "memberUid", "description"},
			},
		},
	}
}
