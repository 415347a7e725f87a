// Command chmigrate applies versioned SQL migrations to ClickHouse.
package main

import "github.com/aqasim81/chmigrate/internal/cli"

func main() {
	cli.Execute()
}
