// Command ringdist computes ring and edit distances between nodes.
package main

import "github.com/sarchlab/ringdist/ringdist/cmd"

func main() {
	cmd.Execute()
}
