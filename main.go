/*
Copyright © 2025 Merriman Lab
*/
package main

import "github.com/MerrimanLab/GWASPipeline/cmd"

func main() {
	cmd.Execute()
}
