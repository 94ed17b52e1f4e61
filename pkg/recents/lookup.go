package recents

import (
	"github.com/otherjamesbrown/recents/pkg/phone"
)

// lookup holds the contact and SIM snapshots for a single fetch along with
// the name and photo caches built while walking its records. It is never
// shared between fetches.
type lookup struct {
	contacts []Contact
	digits   int

	// byID maps a contact id to its index in contacts. First occurrence wins.
	byID map[int64]int
	// multiNumber maps the raw and normalized forms of every number belonging
	// to a contact with more than one number to that contact's id.
	multiNumber map[string]int64
	// sims maps an account handle to its line.
	sims map[string]SimAccount

	names  map[string]string
	photos map[string]string

	fuzzyHits int
}

func newLookup(contacts []Contact, accounts []SimAccount, digits int) *lookup {
	if digits <= 0 {
		digits = phone.DefaultComparableDigits
	}
	l := &lookup{
		contacts:    contacts,
		digits:      digits,
		byID:        make(map[int64]int, len(contacts)),
		multiNumber: make(map[string]int64),
		sims:        make(map[string]SimAccount, len(accounts)),
		names:       make(map[string]string),
		photos:      make(map[string]string),
	}

	for i, c := range contacts {
		if _, ok := l.byID[c.ContactID]; !ok {
			l.byID[c.ContactID] = i
		}
		if len(c.PhoneNumbers) < 2 {
			continue
		}
		for _, pn := range c.PhoneNumbers {
			l.indexNumber(pn.Value, c.ContactID)
			l.indexNumber(pn.NormalizedValue, c.ContactID)
		}
	}

	for _, a := range accounts {
		if _, ok := l.sims[a.HandleID]; !ok {
			l.sims[a.HandleID] = a
		}
	}
	return l
}

func (l *lookup) indexNumber(key string, contactID int64) {
	if key == "" {
		return
	}
	if _, ok := l.multiNumber[key]; !ok {
		l.multiNumber[key] = contactID
	}
}

// resolveName finds a display name for number by comparing trailing digits
// against each contact's first number. Numbers too short to compare, or with
// no match, resolve to themselves. Results are cached either way.
func (l *lookup) resolveName(number string) string {
	if name, ok := l.names[number]; ok {
		return name
	}

	name := number
	if tail, ok := phone.Tail(phone.Normalize(number), l.digits); ok {
		for _, c := range l.contacts {
			if len(c.PhoneNumbers) == 0 {
				continue
			}
			candidate, ok := phone.Tail(c.PhoneNumbers[0].Normalized(), l.digits)
			if ok && candidate == tail {
				name = c.NameToDisplay()
				l.fuzzyHits++
				break
			}
		}
	}

	l.names[number] = name
	return name
}

// photo returns the photo of the first contact that has number exactly.
func (l *lookup) photo(number string) string {
	if uri, ok := l.photos[number]; ok {
		return uri
	}

	uri := ""
	for _, c := range l.contacts {
		if c.ContainsNumber(number) {
			uri = c.PhotoURI
			break
		}
	}

	l.photos[number] = uri
	return uri
}

// sim resolves the line that handled a call, or NoSim for both id and color.
func (l *lookup) sim(accountID *string) (id, color int) {
	if accountID == nil {
		return NoSim, NoSim
	}
	if a, ok := l.sims[*accountID]; ok {
		return a.ID, a.Color
	}
	return NoSim, NoSim
}

// specificNumber returns which of a multi-number contact's numbers was used,
// with its type label. Contacts with a single number yield empty strings.
func (l *lookup) specificNumber(number string) (value, label string) {
	contactID, ok := l.multiNumber[number]
	if !ok {
		return "", ""
	}
	idx, ok := l.byID[contactID]
	if !ok {
		return "", ""
	}
	for _, pn := range l.contacts[idx].PhoneNumbers {
		if pn.Value == number || pn.NormalizedValue == number {
			return pn.Value, phone.Label(pn.Type, pn.Label)
		}
	}
	return "", ""
}
