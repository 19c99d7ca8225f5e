/*
Copyright (c) 2026 The ast-intelligence-hooks Authors (SwiftEnProfundidad)
*/

package main

import "github.com/SwiftEnProfundidad/ast-intelligence-hooks/cmd"

func main() {
	cmd.Execute()
}
