package main

import "github.com/aokisan/gitlab-review-stats/cmd"

func main() {
	cmd.Execute()
}
