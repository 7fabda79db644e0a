package domain

import "sort"

// Metadata is the normalized record produced by the metadata extractor.
type Metadata struct {
	ID             string            `json:"id"`
	Title          string            `json:"title"`
	Description    string            `json:"description,omitempty"`
	Duration       float64           `json:"duration"`
	Uploader       string            `json:"uploader,omitempty"`
	UploadDate     string            `json:"upload_date,omitempty"`
	ViewCount      int64             `json:"view_count"`
	Thumbnail      string            `json:"thumbnail,omitempty"`
	Platform       string            `json:"platform"`
	URL            string            `json:"url"`
	Qualities      []Quality         `json:"supported_qualities"`
	EstimatedSizes map[Quality]int64 `json:"estimated_sizes"`
	HasAudio       bool              `json:"has_audio"`
}

// TierForHeight maps a declared format height to its quality tier.
func TierForHeight(height int) Quality {
	switch {
	case height <= 360:
		return Quality360p
	case height <= 720:
		return Quality720p
	case height <= 1080:
		return Quality1080p
	default:
		return Quality4K
	}
}

var tierOrder = map[Quality]int{
	Quality360p:  0,
	Quality720p:  1,
	Quality1080p: 2,
	Quality4K:    3,
}

// SortTiers orders quality tiers ascending and is stable across calls.
func SortTiers(tiers []Quality) {
	sort.Slice(tiers, func(i, j int) bool {
		return tierOrder[tiers[i]] < tierOrder[tiers[j]]
	})
}
