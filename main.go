package main

import "github.com/ValentinKolb/dSO/cmd"

func main() {
	cmd.Execute()
}
