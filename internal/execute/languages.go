package execute

// Language pairs a runtime name with the version pinned against the
// execution service. Results are only comparable between participants if
// both sides run the same pinned version.
type Language struct {
	Name    string
	Version string
}

// The supported set, in the order the UI cycles through them.
var supported = []Language{
	{Name: "python", Version: "3.10.0"},
	{Name: "javascript", Version: "18.15.0"},
	{Name: "typescript", Version: "5.0.3"},
	{Name: "go", Version: "1.16.2"},
	{Name: "java", Version: "15.0.2"},
	{Name: "c", Version: "10.2.0"},
	{Name: "c++", Version: "10.2.0"},
	{Name: "rust", Version: "1.68.2"},
}

// Supported returns the enumerated language set.
func Supported() []Language {
	out := make([]Language, len(supported))
	copy(out, supported)
	return out
}

// Lookup resolves a language by name.
func Lookup(name string) (Language, bool) {
	for _, l := range supported {
		if l.Name == name {
			return l, true
		}
	}
	return Language{}, false
}

// Next returns the language after name in the cycle order, wrapping at
// the end. Unknown names restart at the first language.
func Next(name string) Language {
	for i, l := range supported {
		if l.Name == name {
			return supported[(i+1)%len(supported)]
		}
	}
	return supported[0]
}
