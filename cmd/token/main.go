// Command token mints a service JWT for the API.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/suPer8Hu/swaif-depths/internal/auth"
	"github.com/suPer8Hu/swaif-depths/internal/config"
)

func main() {
	cfg := config.Load()

	subject := flag.String("sub", "n8n", "token subject")
	scopes := flag.String("scopes", "", "comma separated scopes (empty = all)")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	var list []string
	for _, s := range strings.Split(*scopes, ",") {
		if s = strings.TrimSpace(s); s != "" {
			list = append(list, s)
		}
	}

	tok, err := auth.SignJWT(cfg.JWTSecret, *subject, list, *ttl)
	if err != nil {
		log.Fatalf("sign: %v", err)
	}
	fmt.Fprintln(os.Stdout, tok)
}
