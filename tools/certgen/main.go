// Package main generates a development Certificate Authority (CA) and a
// server certificate for the env store, writing them under a directory
// ("certs" by default).
//
// Usage:
//
//	certgen [-dir certs] [-hosts localhost,127.0.0.1]
//
// Point the server at server.crt/server.key (-tls-cert/-tls-key) and the CLI
// at ca.crt (caFile in its global config).
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atinyakov/envmanager/internal/certgen"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "certgen:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("certgen", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	dir := fs.String("dir", "certs", "output directory")
	hosts := fs.String("hosts", "localhost,127.0.0.1", "comma-separated server host names and IPs")
	if err := fs.Parse(args); err != nil {
		return err
	}

	list := splitHosts(*hosts)
	if err := certgen.WriteBundle(*dir, list); err != nil {
		return err
	}
	fmt.Fprintf(out, "Certificates for %s generated into %s\n", strings.Join(list, ", "), *dir)
	return nil
}

func splitHosts(s string) []string {
	var out []string
	for _, h := range strings.Split(s, ",") {
		if h = strings.TrimSpace(h); h != "" {
			out = append(out, h)
		}
	}
	return out
}
