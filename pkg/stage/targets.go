package stage

import (
	"time"

	"github.com/google/uuid"

	"github.com/muralikrish9/cyberroomba/pkg/model"
	"github.com/muralikrish9/cyberroomba/pkg/store"
)

// EnsureTargets upserts the given assets as active targets of the
// program. (program, asset value) is the natural key; a re-submitted
// asset refreshes last_seen and keeps its id and first_seen.
func EnsureTargets(d *Deps, program string, assets []model.Asset) ([]model.Target, error) {
	now := time.Now().UTC()
	out := make([]model.Target, 0, len(assets))

	for _, asset := range assets {
		// The asset value sits in a nested document, out of reach of
		// the store's flat filter, so matching walks decoded targets.
		target, err := findTarget(d, program, asset.Value)
		if err != nil {
			return nil, err
		}
		if target == nil {
			target = &model.Target{
				ID:        uuid.NewString(),
				Program:   program,
				Asset:     asset,
				Status:    model.TargetActive,
				FirstSeen: now,
				LastSeen:  now,
			}
			doc, err := store.ToDoc(target)
			if err != nil {
				return nil, err
			}
			if err := d.Store.InsertMany(store.Targets, doc); err != nil {
				return nil, err
			}
		} else {
			target.LastSeen = now
			if err := d.Store.UpdateByID(store.Targets, target.ID, map[string]any{
				"last_seen": now.Format(time.RFC3339Nano),
			}); err != nil {
				return nil, err
			}
		}
		out = append(out, *target)
	}
	return out, nil
}

// findTarget locates a target by program and asset value.
func findTarget(d *Deps, program, value string) (*model.Target, error) {
	docs, err := d.Store.Find(store.Targets, map[string]any{"program": program})
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		var t model.Target
		if err := store.FromDoc(doc, &t); err != nil {
			continue
		}
		if t.Asset.Value == value {
			return &t, nil
		}
	}
	return nil, nil
}

// ActiveTargets loads every active target, optionally scoped to one
// program.
func ActiveTargets(d *Deps, program string) ([]model.Target, error) {
	filter := map[string]any{"status": string(model.TargetActive)}
	if program != "" {
		filter["program"] = program
	}
	docs, err := d.Store.Find(store.Targets, filter)
	if err != nil {
		return nil, err
	}

	out := make([]model.Target, 0, len(docs))
	for _, doc := range docs {
		var t model.Target
		if err := store.FromDoc(doc, &t); err != nil {
			d.logger().Warn("skipping undecodable target", "id", doc.ID(), "error", err)
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// AliveHosts loads every host record marked alive.
func AliveHosts(d *Deps) ([]model.HostRecord, error) {
	docs, err := d.Store.Find(store.Hosts, map[string]any{"alive": true})
	if err != nil {
		return nil, err
	}

	out := make([]model.HostRecord, 0, len(docs))
	for _, doc := range docs {
		var h model.HostRecord
		if err := store.FromDoc(doc, &h); err != nil {
			d.logger().Warn("skipping undecodable host", "id", doc.ID(), "error", err)
			continue
		}
		out = append(out, h)
	}
	return out, nil
}
