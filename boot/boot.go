// Package boot provides the startup and shutdown plumbing shared by service binaries.
package boot

import (
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sprucehealth/payflow/libs/golog"
)

// ParseFlags parses the command line flags allowing any flag to also be
// provided as an environment variable using the given prefix. The flag
// name is upper cased and has '.' and '-' replaced with '_' when looking
// up the environment (e.g. -mc.hosts becomes PREFIX_MC_HOSTS). Command
// line values take precedence over the environment.
func ParseFlags(envPrefix string) {
	flag.Parse()

	set := make(map[string]struct{})
	flag.Visit(func(f *flag.Flag) {
		set[f.Name] = struct{}{}
	})
	flag.VisitAll(func(f *flag.Flag) {
		if _, ok := set[f.Name]; ok {
			return
		}
		env := envPrefix + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(f.Name))
		if v, ok := os.LookupEnv(env); ok {
			if err := flag.Set(f.Name, v); err != nil {
				golog.Fatalf("boot: invalid value for %s: %s", env, err)
			}
		}
	})
}

// WaitForTermination waits for an INT or TERM signal.
func WaitForTermination() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	sig := <-ch
	golog.Infof("Quitting due to signal %s", sig.String())
}
