package environ

import (
	"fmt"
	"os"
	"strings"
)

// MustGetEnv returns an error naming every environment variable in [envVars] that is unset.
func MustGetEnv(envVars ...string) error {
	var missing []string
	for _, envVar := range envVars {
		if os.Getenv(envVar) == "" {
			missing = append(missing, envVar)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("required environment variables %q are not set", strings.Join(missing, ", "))
	}

	return nil
}
