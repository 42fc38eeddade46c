// Command cyberroomba runs the recon and attack pipeline: enumerate
// and probe scoped targets, scan live hosts with the profile table,
// and correlate findings against a CVE feed.
package main

import (
	"fmt"
	"os"
)

const version = "0.3.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "recon":
		runRecon(os.Args[2:])
	case "attack":
		runAttack(os.Args[2:])
	case "enrich":
		runEnrich(os.Args[2:])
	case "suggest":
		runSuggest(os.Args[2:])
	case "version", "-version", "--version":
		fmt.Println("cyberroomba", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `cyberroomba - autonomous recon and attack pipeline

Usage:
  cyberroomba <command> [flags]

Commands:
  recon     Enumerate subdomains and probe hosts for scoped targets
  attack    Run the attack profile table against live hosts
  enrich    Backfill CVSS data onto stored findings from a CVE feed
  suggest   Propose candidate CVEs from host technology fingerprints
  version   Print the version

Examples:
  cyberroomba recon -t example.com -program acme
  cyberroomba recon -l scope.txt -program acme -concurrency 10
  cyberroomba attack -program acme -feed nvdcve-2.0.json
  cyberroomba enrich -feed nvdcve-2.0.json
  cyberroomba suggest -feed nvdcve-2.0.json

Run 'cyberroomba <command> -h' for command flags.
`)
}
