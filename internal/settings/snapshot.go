package settings

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Snapshot is a full export of the stored settings.
type Snapshot struct {
	User     UserConfig      `yaml:"user"`
	Provider ProviderConfigs `yaml:"provider"`
}

// SnapshotPatch is what Import applies. Fields missing from the file are
// left as stored; a missing provider section leaves the provider keys alone.
type SnapshotPatch struct {
	User     UserConfigUpdate `yaml:"user"`
	Provider *ProviderConfigs `yaml:"provider,omitempty"`
}

func (a *Accessor) Export(ctx context.Context) (Snapshot, error) {
	user, err := a.GetUserConfig(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	provider, err := a.GetProviderConfigs(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{User: user, Provider: provider}, nil
}

// Import writes p through UpdateUserConfig and, if present,
// SaveProviderConfigs. Both parts are validated first, so a rejected patch
// writes nothing.
func (a *Accessor) Import(ctx context.Context, p SnapshotPatch) error {
	if err := p.User.validate(); err != nil {
		return err
	}
	if p.Provider != nil && !isValid(p.Provider.Provider, ProviderTypes) {
		return fmt.Errorf("%w: unknown provider %q", ErrInvalidValue, p.Provider.Provider)
	}

	if err := a.UpdateUserConfig(ctx, p.User); err != nil {
		return err
	}
	if p.Provider == nil {
		return nil
	}
	return a.SaveProviderConfigs(ctx, p.Provider.Provider, p.Provider.Configs)
}

func WriteSnapshot(w io.Writer, s Snapshot) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return enc.Close()
}

func ReadSnapshot(r io.Reader) (SnapshotPatch, error) {
	var p SnapshotPatch
	if err := yaml.NewDecoder(r).Decode(&p); err != nil {
		if err == io.EOF {
			return SnapshotPatch{}, nil
		}
		return SnapshotPatch{}, fmt.Errorf("decoding snapshot: %w", err)
	}
	return p, nil
}
