package main

import "github.com/cardmill/invoicecard/cmd/invoicecard/cmd"

func main() {
	cmd.Execute()
}
