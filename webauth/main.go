package main

import (
	"github.com/ccontavalli/webauth/lib/kflags/kcobra"
	"github.com/ccontavalli/webauth/webauth/cmd"
)

func main() {
	kcobra.Run(cmd.New().Command)
}
