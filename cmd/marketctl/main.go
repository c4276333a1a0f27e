// Command marketctl queries the BenFarm marketplace gRPC service.
//
//	marketctl [-addr host:port] products [-category seeds] [-search maize]
//	marketctl [-addr host:port] -token <session token> order <id>
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/evansochadeka/BenFarm/pkg/catalog"
	"github.com/evansochadeka/BenFarm/pkg/config"
	"github.com/evansochadeka/BenFarm/pkg/discovery"
	"github.com/evansochadeka/BenFarm/pkg/grpc"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the optional YAML config file")
	addr := flag.String("addr", "", "service address; skips etcd lookup")
	token := flag.String("token", os.Getenv("BENFARM_TOKEN"), "session token for authenticated calls")
	category := flag.String("category", "", "product category filter")
	search := flag.String("search", "", "product search text")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fail("Failed to load config: %v", err)
	}
	logger := zap.NewNop()

	var sd *discovery.ServiceDiscovery
	if *addr == "" && len(cfg.Etcd.Endpoints) > 0 {
		if sd, err = discovery.NewServiceDiscovery(&cfg.Etcd, logger); err == nil {
			defer sd.Close()
		}
	}

	client := grpc.NewClientManager(&cfg.Server, logger, sd)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if *addr != "" {
		err = client.ConnectTo(*addr)
	} else {
		err = client.Connect(ctx)
	}
	if err != nil {
		fail("%v", err)
	}
	defer client.Close()

	var out *structpb.Struct
	switch flag.Arg(0) {
	case "products":
		out, err = client.ListProducts(ctx, catalog.Filter{Category: *category, Search: *search})
	case "order":
		id, perr := strconv.ParseUint(flag.Arg(1), 10, 64)
		if perr != nil {
			fail("usage: marketctl -token <token> order <id>")
		}
		out, err = client.GetOrder(ctx, *token, uint(id))
	default:
		fail("usage: marketctl products | order <id>")
	}
	if err != nil {
		fail("%v", err)
	}
	data, err := protojson.MarshalOptions{Multiline: true}.Marshal(out)
	if err != nil {
		fail("%v", err)
	}
	fmt.Println(string(data))
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
