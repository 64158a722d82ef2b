package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/sw33tLie/archerlookup/pkg/archer"
	"github.com/sw33tLie/archerlookup/pkg/entity"
)

func main() {
	// Usage: go run *.go -host "https://archer.example.com" -username "api" -password "secret" 10.1.2.3 APPID-1234

	hostFlag := flag.String("host", "", "Archer base URL")
	userFlag := flag.String("username", "", "Archer API username")
	passFlag := flag.String("password", "", "Archer API password")
	instanceFlag := flag.String("instance", "", "Archer instance name")

	// Parse the command-line flags
	flag.Parse()

	opts := archer.DefaultOptions()
	opts.Host = *hostFlag
	opts.UserName = *userFlag
	opts.UserPass = *passFlag
	opts.InstanceID = *instanceFlag

	if errs := archer.ValidateOptions(opts); len(errs) > 0 {
		for _, e := range errs {
			fmt.Println(e.Message)
		}
		return
	}

	integration, err := archer.New(archer.Config{})
	if err != nil {
		fmt.Println(err)
		return
	}

	entities, _ := entity.ParseAll(flag.Args())
	results, err := integration.DoLookup(context.Background(), entities, opts)
	if err != nil {
		fmt.Println(err)
		return
	}

	for _, r := range results {
		if r.Data == nil {
			continue
		}
		fmt.Println(r.Entity.Value, strings.Join(r.Data.Summary, ", "))
	}
}
