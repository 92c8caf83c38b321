package main

import (
	"fmt"
	"os"

	"pollbot/internal/shared/boundaries"
)

func main() {
	violations, err := boundaries.Check("contexts", "pollbot")
	if err != nil {
		fmt.Fprintf(os.Stderr, "boundary check failed: %v\n", err)
		os.Exit(2)
	}
	if len(violations) == 0 {
		fmt.Println("boundary checks passed")
		return
	}

	fmt.Println("boundary violations found:")
	for _, v := range violations {
		fmt.Printf("- %s\n", v)
	}
	os.Exit(1)
}
