package phone

// Type is the kind of a contact's phone number. Values follow the platform
// contacts provider so numbers synced from a device keep their meaning.
type Type int

const (
	TypeCustom  Type = 0
	TypeHome    Type = 1
	TypeMobile  Type = 2
	TypeWork    Type = 3
	TypeFaxWork Type = 4
	TypeFaxHome Type = 5
	TypePager   Type = 6
	TypeOther   Type = 7
	TypeMain    Type = 12
)

var typeLabels = map[Type]string{
	TypeHome:    "Home",
	TypeMobile:  "Mobile",
	TypeWork:    "Work",
	TypeFaxWork: "Work fax",
	TypeFaxHome: "Home fax",
	TypePager:   "Pager",
	TypeOther:   "Other",
	TypeMain:    "Main number",
}

// Label returns the human label for a number type. Custom numbers use their
// own label; unrecognised types read as "Other".
func Label(t Type, custom string) string {
	if t == TypeCustom {
		if custom != "" {
			return custom
		}
		return typeLabels[TypeOther]
	}
	if label, ok := typeLabels[t]; ok {
		return label
	}
	return typeLabels[TypeOther]
}
