// Cachelab runs configurable blocking-cache experiments from the command
// line.
package main

import "github.com/hachisim/hachi/cachelab/cmd"

func main() {
	cmd.Execute()
}
