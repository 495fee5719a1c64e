// taxrecon is the offline CLI for the ledger reconciliation engine.
package main

func main() {
	execute()
}
