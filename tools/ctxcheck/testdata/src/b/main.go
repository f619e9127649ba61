package main

import "context"

func main() {
	run(context.Background())
}

func run(ctx context.Context) {
	_ = context.Background() // want `context.Background\(\) in run`
	_ = ctx
}
