// Command reviewclient sends a recorded call to the review service over gRPC
// and prints the JSON response.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"call-review-service/internal/api"
	grpcapi "call-review-service/internal/api/grpc"
)

func main() {
	serverAddr := flag.String("server", "localhost:50051", "gRPC server address")
	method := flag.String("method", "review", "merge, validate or review")
	stereo := flag.String("stereo", "", "Stereo WAV file, caller on the left channel")
	callerWAV := flag.String("caller-audio", "", "Caller mono WAV file")
	receiverWAV := flag.String("receiver-audio", "", "Receiver mono WAV file")
	callerASR := flag.String("caller-asr", "", "Caller ASR JSON response")
	receiverASR := flag.String("receiver-asr", "", "Receiver ASR JSON response")
	formFile := flag.String("form", "", "Pre-generated form text (required for validate)")
	callID := flag.String("call", "call-"+time.Now().Format("150405"), "Call ID")
	timeout := flag.Duration("timeout", 15*time.Minute, "Request timeout")
	flag.Parse()

	fullMethod, ok := map[string]string{
		"merge":    grpcapi.MethodMerge,
		"validate": grpcapi.MethodValidate,
		"review":   grpcapi.MethodReview,
	}[*method]
	if !ok {
		log.Fatalf("Unknown method %q", *method)
	}

	req := api.ReviewRequest{
		CallID:      *callID,
		StereoAudio: readOptional(*stereo),
		Caller:      api.Channel{Audio: readOptional(*callerWAV), ASR: readOptional(*callerASR)},
		Receiver:    api.Channel{Audio: readOptional(*receiverWAV), ASR: readOptional(*receiverASR)},
		FormText:    string(readOptional(*formFile)),
	}

	conn, err := grpc.NewClient(*serverAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("Connected to %s, calling %s for %s", *serverAddr, fullMethod, *callID)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	var resp json.RawMessage
	if err := grpcapi.NewClient(conn).Call(ctx, fullMethod, req, &resp); err != nil {
		log.Fatalf("Call failed: %v", err)
	}
	log.Printf("Completed in %v", time.Since(start).Round(time.Millisecond))

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		log.Fatalf("Failed to print response: %v", err)
	}
}

func readOptional(path string) []byte {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", path, err)
	}
	return data
}
