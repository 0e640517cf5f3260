// SPDX-License-Identifier: MIT

package capture

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
)

// Remux converts a stored segmented capture into a single user-facing audio
// container, embedding the given metadata tags. The streams are copied, not
// transcoded.
func (r *Runner) Remux(ctx context.Context, manifestPath, outPath string, tags map[string]string) error {
	args := []string{
		"-y",
		"-loglevel", "error",
		"-i", manifestPath,
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-metadata", fmt.Sprintf("%s=%s", k, tags[k]))
	}
	args = append(args, "-c", "copy", outPath)

	cmd := exec.CommandContext(ctx, r.BinPath, args...) // #nosec G204 -- args constructed internally
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("remux failed: %w: %s", err, out)
	}
	return nil
}
