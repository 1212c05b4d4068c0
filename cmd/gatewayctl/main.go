package main

import (
	"os"

	"github.com/hibiken/asynq"

	"github.com/ulms/ulms-gateway/cmd/gatewayctl/cli"
	"github.com/ulms/ulms-gateway/jobs"
)

func main() {
	root := cli.NewRootCmd(func(addr string) (cli.QueueAdmin, error) {
		return jobs.NewInspector(asynq.RedisClientOpt{Addr: addr}), nil
	})
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
