package main

import "github.com/frahmantamala/payment-verification/cmd"

func main() {
	cmd.Execute()
}
