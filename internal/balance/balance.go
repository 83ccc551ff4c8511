// Package balance builds bias-balanced ingestion batches.
package balance

import "github.com/thinkscotty/civicwire/internal/models"

// Select returns at most target items from pool, spread as evenly as the pool
// allows across Lean Left, Lean Right and Center.
//
// Each side gets min(target/3, min(|left|, |right|)) items so neither side
// outnumbers the other; center fills the rest of the quota. If the batch is
// still short it is backfilled from the unused left, right and then center
// items. Input order is preserved within each bucket.
func Select(pool []models.FeedItem, target int) []models.FeedItem {
	if target <= 0 {
		return nil
	}

	var left, right, center []models.FeedItem
	for _, it := range pool {
		switch it.Bias {
		case models.BiasLeanLeft:
			left = append(left, it)
		case models.BiasLeanRight:
			right = append(right, it)
		case models.BiasCenter:
			center = append(center, it)
		}
	}

	sideQuota := min(target/3, min(len(left), len(right)))
	centerQuota := min(target-2*sideQuota, len(center))

	selected := make([]models.FeedItem, 0, target)
	selected = append(selected, left[:sideQuota]...)
	selected = append(selected, right[:sideQuota]...)
	selected = append(selected, center[:centerQuota]...)

	for _, overflow := range [][]models.FeedItem{left[sideQuota:], right[sideQuota:], center[centerQuota:]} {
		if len(selected) >= target {
			break
		}
		n := min(target-len(selected), len(overflow))
		selected = append(selected, overflow[:n]...)
	}
	return selected
}

// Count tallies items per bias label.
func Count(items []models.FeedItem) map[models.BiasLabel]int {
	counts := make(map[models.BiasLabel]int, 3)
	for _, it := range items {
		counts[it.Bias]++
	}
	return counts
}
