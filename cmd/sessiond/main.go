package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/app"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/jwtx"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "keygen" {
		if err := keygen(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "keygen: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg := app.LoadConfig()

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}

// keygen writes a signing key for SESSION_SIGNING_KEY_FILE, sealed when a
// master key file is given.
func keygen(args []string) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	var (
		alg    = fs.String("alg", jwtx.AlgorithmEdDSA, "signing algorithm: EdDSA or ES256")
		out    = fs.String("out", "signing.key", "where to write the key")
		master = fs.String("master", "", "master key file used to seal the key; empty writes plain PEM")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := app.SealKeyFile(*alg, *out, *master); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "wrote %s key to %s (sealed: %t)\n", *alg, *out, *master != "")
	return nil
}
