package main

import (
	"context"
	"flag"
	"io"
	"log"
	"time"

	grpctls "github.com/EternisAI/blinkup-bridge/internal/grpc/tls"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
)

var (
	address  = flag.String("address", "localhost:9090", "gRPC server address")
	service  = flag.String("service", "blinkup.Bridge", "Health service to watch")
	duration = flag.Duration("duration", 30*time.Second, "How long to watch for status changes")
	caFile   = flag.String("ca-file", "", "CA certificate; enables TLS when set")
	certFile = flag.String("cert-file", "", "Client certificate for mutual TLS")
	keyFile  = flag.String("key-file", "", "Client key for mutual TLS")
)

func main() {
	flag.Parse()

	creds := insecure.NewCredentials()
	if *caFile != "" {
		var err error
		creds, err = grpctls.ClientCredentials(*certFile, *keyFile, *caFile, "")
		if err != nil {
			log.Fatalf("Failed to load TLS credentials: %v", err)
		}
	}

	log.Printf("Connecting to gRPC server at %s", *address)
	conn, err := dial(*address, creds)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	client := healthpb.NewHealthClient(conn)

	probeID := uuid.New().String()
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()
	ctx = metadata.AppendToOutgoingContext(ctx, "x-probe-id", probeID)

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: *service})
	if err != nil {
		log.Fatalf("Health check failed: %v", err)
	}
	log.Printf("Probe %s: %s is %s", probeID, *service, resp.GetStatus())

	stream, err := client.Watch(ctx, &healthpb.HealthCheckRequest{Service: *service})
	if err != nil {
		log.Fatalf("Failed to watch: %v", err)
	}

	for {
		update, err := stream.Recv()
		if err == io.EOF || ctx.Err() != nil {
			break
		}
		if err != nil {
			log.Printf("Watch error: %v", err)
			break
		}
		log.Printf("Status changed: %s", update.GetStatus())
	}

	log.Println("Health probe finished")
}

func dial(addr string, creds credentials.TransportCredentials) (*grpc.ClientConn, error) {
	return grpc.NewClient(addr, grpc.WithTransportCredentials(creds))
}
