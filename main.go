package main

import "github.com/meysamhadeli/codechat/cmd"

func main() {
	cmd.Execute()
}
