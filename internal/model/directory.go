package model

import (
	"fmt"
	"strings"
)

// Profile describes one simulated person.
type Profile struct {
	Name      string `yaml:"name" json:"name"`
	Email     string `yaml:"email" json:"email"`
	Title     string `yaml:"title" json:"title"`
	Style     string `yaml:"style" json:"style,omitempty"`
	Signature string `yaml:"signature" json:"signature,omitempty"`
	Company   string `yaml:"-" json:"company"`
}

// Participant returns the profile as an address.
func (p *Profile) Participant() Participant {
	return Participant{Name: p.Name, Email: p.Email}
}

// Company groups personnel under a company name.
type Company struct {
	Name      string    `yaml:"name"`
	Personnel []Profile `yaml:"personnel"`
}

// Directory maps names and addresses to profiles. It is read-only after
// construction and safe for concurrent use.
type Directory struct {
	companies []Company
	profiles  []*Profile
	byKey     map[string]*Profile
	// names in declaration order, used for prompt scanning
	names []string
}

// NewDirectory indexes every person by name and by address.
func NewDirectory(companies []Company) *Directory {
	d := &Directory{
		companies: companies,
		byKey:     make(map[string]*Profile),
	}
	for _, c := range companies {
		for i := range c.Personnel {
			p := c.Personnel[i]
			p.Company = c.Name
			pp := &p
			d.profiles = append(d.profiles, pp)
			if p.Name != "" {
				if _, ok := d.byKey[p.Name]; !ok {
					d.names = append(d.names, p.Name)
				}
				d.byKey[p.Name] = pp
			}
			if p.Email != "" {
				d.byKey[p.Email] = pp
			}
		}
	}
	return d
}

// Lookup returns the profile for a name or address.
func (d *Directory) Lookup(key string) (*Profile, bool) {
	if d == nil {
		return nil, false
	}
	p, ok := d.byKey[key]
	return p, ok
}

// ResolveEmail returns the canonical address for a name or address.
func (d *Directory) ResolveEmail(key string) string {
	if p, ok := d.Lookup(key); ok {
		return p.Email
	}
	return ""
}

// Profiles returns every profile in declaration order.
func (d *Directory) Profiles() []*Profile {
	if d == nil {
		return nil
	}
	return d.profiles
}

// Names returns person names in declaration order.
func (d *Directory) Names() []string {
	if d == nil {
		return nil
	}
	return d.names
}

// Emails returns every distinct address in declaration order.
func (d *Directory) Emails() []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range d.Profiles() {
		if p.Email == "" || seen[p.Email] {
			continue
		}
		seen[p.Email] = true
		out = append(out, p.Email)
	}
	return out
}

// ContextBlock renders the personnel listing prepended to every prompt.
func (d *Directory) ContextBlock() string {
	var b strings.Builder
	b.WriteString("Context for a fictional simulation:\n")
	if d == nil {
		return b.String()
	}
	for _, c := range d.companies {
		fmt.Fprintf(&b, "\nCompany: %s\n", c.Name)
		for _, p := range c.Personnel {
			fmt.Fprintf(&b, "- %s, %s (%s)\n", p.Name, p.Title, p.Email)
		}
	}
	return b.String()
}
