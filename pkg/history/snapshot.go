package history

import (
	"fmt"

	"github.com/aretw0/loom/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// DecodeSnapshot converts s to a snapshot. s may be a domain.Snapshot, a
// pointer to one, or the untyped map produced by decoding snapshot JSON.
// Versions other than domain.SnapshotVersion, and maps without a version,
// yield domain.ErrUnsupportedVersion.
func DecodeSnapshot(s any) (domain.Snapshot, error) {
	var snap domain.Snapshot
	switch v := s.(type) {
	case nil:
		return snap, fmt.Errorf("nil snapshot")
	case domain.Snapshot:
		snap = v
	case *domain.Snapshot:
		if v == nil {
			return snap, fmt.Errorf("nil snapshot")
		}
		snap = *v
	case map[string]any:
		if _, ok := v["version"]; !ok {
			return snap, fmt.Errorf("%w: missing version", domain.ErrUnsupportedVersion)
		}
		if err := decodeUntyped(v, &snap); err != nil {
			return snap, err
		}
	default:
		if err := decodeUntyped(s, &snap); err != nil {
			return snap, err
		}
	}
	if snap.Version != domain.SnapshotVersion {
		return domain.Snapshot{}, fmt.Errorf("%w: %d", domain.ErrUnsupportedVersion, snap.Version)
	}
	return snap, nil
}

func decodeUntyped(s any, snap *domain.Snapshot) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           snap,
	})
	if err != nil {
		return fmt.Errorf("failed to create snapshot decoder: %w", err)
	}
	if err := dec.Decode(s); err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return nil
}
