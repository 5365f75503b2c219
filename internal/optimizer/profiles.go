package optimizer

// Profiles maps an upload category to optimizer settings. The "default" entry
// covers categories without their own profile.
type Profiles map[string]Options

const defaultProfile = "default"

// DefaultProfiles returns the built-in per-category settings.
func DefaultProfiles() Profiles {
	return Profiles{
		"avatar":    {MaxWidth: 400, MaxHeight: 400, Quality: 85, MaxSizeBytes: 200 << 10},
		"profile":   {MaxWidth: 400, MaxHeight: 400, Quality: 85, MaxSizeBytes: 200 << 10},
		"thumbnail": {MaxWidth: 300, MaxHeight: 300, Quality: 80, MaxSizeBytes: 100 << 10},
		"banner":    {MaxWidth: 1920, MaxHeight: 600, Quality: 85, MaxSizeBytes: 1 << 20},
		"cover":     {MaxWidth: 1920, MaxHeight: 600, Quality: 85, MaxSizeBytes: 1 << 20},
		"lesson":    {MaxWidth: 1920, MaxHeight: 1080, Quality: 85, MaxSizeBytes: 2 << 20},
		"course":    {MaxWidth: 1920, MaxHeight: 1080, Quality: 85, MaxSizeBytes: 2 << 20},
		"default":   {MaxWidth: 2048, MaxHeight: 2048, Quality: 85, MaxSizeBytes: 2 << 20},
	}
}

// For returns the settings for category, falling back to the default profile.
func (p Profiles) For(category string) Options {
	if o, ok := p[category]; ok {
		return o
	}
	if o, ok := p[defaultProfile]; ok {
		return o
	}
	return DefaultProfiles()[defaultProfile]
}

// WithDefault returns a copy of p whose default profile is replaced by o.
func (p Profiles) WithDefault(o Options) Profiles {
	out := make(Profiles, len(p))
	for k, v := range p {
		out[k] = v
	}
	out[defaultProfile] = o
	return out
}

// RecommendedOptions returns the built-in settings for category.
func RecommendedOptions(category string) Options {
	return DefaultProfiles().For(category)
}
