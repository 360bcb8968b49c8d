// Example client: connects to the live feed and prints every event.
//
//	go run ./clients/go -server http://localhost:8080 -token $TOKEN
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/Loutxo/bam-backend-sub000/clients/go/bam"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "server base URL")
	token := flag.String("token", "", "JWT")
	room := flag.String("room", "", "incident room to join")
	flag.Parse()

	if *token == "" {
		fmt.Fprintln(os.Stderr, "a token is required, see cmd/gentoken")
		os.Exit(1)
	}

	client := bam.NewClient(*server, *token)
	feed, err := client.Connect(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect failed: %v\n", err)
		os.Exit(1)
	}
	defer feed.Close()

	if *room != "" {
		if err := feed.Join(*room); err != nil {
			fmt.Fprintf(os.Stderr, "join failed: %v\n", err)
			os.Exit(1)
		}
	}

	for {
		ev, err := feed.Next()
		if err != nil {
			fmt.Fprintf(os.Stderr, "feed closed: %v\n", err)
			os.Exit(1)
		}
		line, _ := json.Marshal(ev)
		fmt.Println(string(line))
	}
}
