package stage

import (
	"encoding/json"

	"unspool/internal/services"
	"unspool/internal/trackspec"
)

// ParseTrackSpec parses a persisted track envelope and returns it.
// On failure it returns a services.ErrValidation suitable for stage Execute methods.
func ParseTrackSpec(raw string) (trackspec.Envelope, error) {
	env, err := trackspec.Parse(raw)
	if err != nil {
		return trackspec.Envelope{}, services.Wrap(
			services.ErrValidation, "stage", "parse track spec",
			"Track envelope missing or invalid; rerun identification", err)
	}
	return env, nil
}

// RequireUnlocked verifies the envelope carries a staged payload and content
// hash before a stage that consumes them runs.
func RequireUnlocked(env trackspec.Envelope, stageName string) error {
	if env.Unlocked() {
		return nil
	}
	return services.Wrap(
		services.ErrValidation, stageName, "check unlock products",
		"Staged payload or content hash missing; rerun unlock", nil)
}

// EncodeWarnings renders the envelope's warnings as the JSON array persisted
// on queue items. An envelope without warnings encodes to the empty string.
func EncodeWarnings(env trackspec.Envelope) string {
	lines := env.WarningLines()
	if len(lines) == 0 {
		return ""
	}
	encoded, err := json.Marshal(lines)
	if err != nil {
		return ""
	}
	return string(encoded)
}
