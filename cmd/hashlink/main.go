// Copyright © 2018 One Concern

package main

import (
	"github.com/oneconcern/hashlink/cmd/hashlink/cmd"
)

func main() {
	cmd.Execute()
}
