// Command mockposting runs internal/posting/mockserver standalone, for
// manual exercising of cmd/server against a fake downstream posting
// service without a real one available.
package main

import (
	"flag"
	"log"
	"net/http"

	"github.com/moulimds/transaction-service/internal/posting/mockserver"
)

func main() {
	addr := flag.String("addr", ":8080", "address to listen on")
	flag.Parse()

	srv := mockserver.New()
	log.Printf("mock posting service listening on %s", *addr)
	if err := http.ListenAndServe(*addr, srv.Handler()); err != nil {
		log.Fatal(err)
	}
}
