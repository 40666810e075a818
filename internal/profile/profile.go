// Package profile maps quality tiers to encode parameters.
package profile

import "sort"

// Profile is a named bundle of encode parameters for one quality tier.
type Profile struct {
	Tier         int    `json:"tier"`       // e.g. 480, 720, 1080
	Resolution   string `json:"resolution"` // WxH passed to the scale filter
	FPS          int    `json:"fps"`
	VideoBitrate string `json:"video_bitrate"` // ceiling, e.g. "2500k"
	BufSize      string `json:"buf_size"`      // rate-control buffer, e.g. "5000k"
	AudioBitrate string `json:"audio_bitrate"`
}

// Registry resolves quality tiers to Profiles. The table is fixed at startup;
// unknown tiers fall back to the configured default tier.
type Registry struct {
	defaultTier int
	profiles    map[int]Profile
	tiers       []int // ascending
}

// NewRegistry builds the standard tier table. defaultTier is used for
// unrecognized lookups; if it is itself unknown, 720 is used.
func NewRegistry(defaultTier int) *Registry {
	profiles := map[int]Profile{
		480:  {Tier: 480, Resolution: "854x480", FPS: 30, VideoBitrate: "1500k", BufSize: "3000k", AudioBitrate: "128k"},
		720:  {Tier: 720, Resolution: "1280x720", FPS: 30, VideoBitrate: "2500k", BufSize: "5000k", AudioBitrate: "128k"},
		1080: {Tier: 1080, Resolution: "1920x1080", FPS: 30, VideoBitrate: "4500k", BufSize: "9000k", AudioBitrate: "128k"},
	}
	if _, ok := profiles[defaultTier]; !ok {
		defaultTier = 720
	}
	tiers := make([]int, 0, len(profiles))
	for t := range profiles {
		tiers = append(tiers, t)
	}
	sort.Ints(tiers)
	return &Registry{defaultTier: defaultTier, profiles: profiles, tiers: tiers}
}

// Resolve returns the Profile for tier, or the default tier's Profile when
// tier is unknown. It never fails.
func (r *Registry) Resolve(tier int) Profile {
	if p, ok := r.profiles[tier]; ok {
		return p
	}
	return r.profiles[r.defaultTier]
}

// DefaultTier returns the configured fallback tier.
func (r *Registry) DefaultTier() int { return r.defaultTier }

// Tiers returns all known tiers in ascending order.
func (r *Registry) Tiers() []int {
	out := make([]int, len(r.tiers))
	copy(out, r.tiers)
	return out
}

// StepDown returns the next lower tier and true, or tier and false when
// already at the lowest.
func (r *Registry) StepDown(tier int) (int, bool) {
	cur := r.Resolve(tier).Tier
	for i, t := range r.tiers {
		if t == cur && i > 0 {
			return r.tiers[i-1], true
		}
	}
	return cur, false
}

// StepUp returns the next higher tier and true, or tier and false when
// already at the highest.
func (r *Registry) StepUp(tier int) (int, bool) {
	cur := r.Resolve(tier).Tier
	for i, t := range r.tiers {
		if t == cur && i < len(r.tiers)-1 {
			return r.tiers[i+1], true
		}
	}
	return cur, false
}
