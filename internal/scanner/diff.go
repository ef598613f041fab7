package scanner

import (
	"github.com/northvine/sitesync/internal/domain"
)

// Diff compares the current filtered sitemap URL set against the prior
// snapshot and returns the change records plus the URL set of the new
// snapshot.
//
// Rules:
//   - absent from prior: new
//   - present in both with empty lastmod on both sides: new (no way to
//     prove the page did not change, so it is treated as changed)
//   - present with equal lastmod: no record, carried into the new snapshot
//   - present with different lastmod: updated
//   - present in prior only: removed, not carried into the new snapshot
//
// A duplicate loc inside the prior snapshot is a data error and aborts the
// diff.
func Diff(tenantID string, current []domain.URLRecord, prior *domain.SitemapSnapshot) ([]domain.ChangeRecord, []domain.URLRecord, error) {
	priorLastmods := make(map[string]string, len(prior.URLs))
	for _, u := range prior.URLs {
		if _, dup := priorLastmods[u.Loc]; dup {
			return nil, nil, domain.ConfigError(
				"tenant %q: duplicate url %q in previous snapshot", tenantID, u.Loc)
		}
		priorLastmods[u.Loc] = u.LastMod
	}

	var changes []domain.ChangeRecord
	newSnapshot := make([]domain.URLRecord, 0, len(current))
	seen := make(map[string]struct{}, len(current))

	for _, cur := range current {
		if _, dup := seen[cur.Loc]; dup {
			// Duplicate inside the current sitemap itself: keep the
			// first occurrence so the snapshot invariant holds.
			continue
		}
		seen[cur.Loc] = struct{}{}

		newSnapshot = append(newSnapshot, cur)

		priorLastmod, existed := priorLastmods[cur.Loc]
		delete(priorLastmods, cur.Loc)

		switch {
		case !existed:
			changes = append(changes, changeRecord(tenantID, cur, domain.ReasonNew))
		case priorLastmod == "" && cur.LastMod == "":
			changes = append(changes, changeRecord(tenantID, cur, domain.ReasonNew))
		case priorLastmod == cur.LastMod:
			// Unchanged; carried into the new snapshot only.
		default:
			changes = append(changes, changeRecord(tenantID, cur, domain.ReasonUpdated))
		}
	}

	// Whatever is left in the prior lookup disappeared from the current
	// set. Walk the prior slice to keep removal order deterministic.
	for _, u := range prior.URLs {
		if _, removed := priorLastmods[u.Loc]; removed {
			changes = append(changes, domain.ChangeRecord{
				TenantID: tenantID,
				Loc:      u.Loc,
				LastMod:  u.LastMod,
				Reason:   domain.ReasonRemoved,
			})
		}
	}

	return changes, newSnapshot, nil
}

func changeRecord(tenantID string, u domain.URLRecord, reason domain.ChangeReason) domain.ChangeRecord {
	return domain.ChangeRecord{
		TenantID: tenantID,
		Loc:      u.Loc,
		LastMod:  u.LastMod,
		Reason:   reason,
	}
}
