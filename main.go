package main

import (
	"os"

	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
