package contacts

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/recents/pkg/phone"
	"github.com/otherjamesbrown/recents/pkg/recents"
)

type contactsFile struct {
	Contacts []recents.Contact `yaml:"contacts"`
}

// LoadFile reads a YAML contact list. Numbers without a normalized value get
// one computed.
//
//	contacts:
//	  - contact_id: 1
//	    display_name: Alice
//	    phone_numbers:
//	      - value: "+1 555 0100"
//	        type: 2
func LoadFile(path string) (Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading contacts file: %w", err)
	}

	var f contactsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing contacts file %s: %w", path, err)
	}

	for i := range f.Contacts {
		for j := range f.Contacts[i].PhoneNumbers {
			pn := &f.Contacts[i].PhoneNumbers[j]
			if pn.NormalizedValue == "" {
				pn.NormalizedValue = phone.Normalize(pn.Value)
			}
		}
	}
	return Static(f.Contacts), nil
}
