// Copyright 2018 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// This binary provides a consensus client that supports Google authentication.
//
// Each argument is either a local contig file, which is posted to the server,
// or a bucket/object ID naming a contig stored in GCS.
package main

import (
	"bufio"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/googlegenomics/consensus/api"
)

const (
	scope = "https://www.googleapis.com/auth/devstorage.read_only"

	lineWidth    = 60
	qualsPerLine = 20
)

var (
	server    = flag.String("server", "http://localhost", "consensus server URL")
	reference = flag.String("r", "", "reference name (SAM objects only)")
	start     = flag.Int("start", 0, "first contig position")
	end       = flag.Int("end", 0, "last contig position")
	algorithm = flag.String("algorithm", "", "consensus algorithm")
	output    = flag.String("o", "", "output FASTA filename")
	quality   = flag.Bool("qual", false, "also write a .qual file next to the output")
)

func main() {
	flag.Parse()

	if *quality && *output == "" {
		log.Fatalf("You must specify -o to write quality values.")
	}

	w := io.Writer(os.Stdout)
	var qw io.Writer
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			log.Fatalf("Failed to open output file: %v", err)
		}
		defer f.Close()
		w = f

		if *quality {
			q, err := os.Create(*output + ".qual")
			if err != nil {
				log.Fatalf("Failed to open quality file: %v", err)
			}
			defer q.Close()
			qw = q
		}
	}

	ctx := context.Background()

	// For compatibility with other tools, read the standard cURL certificate
	// authority override from the environment.
	if bundle := os.Getenv("CURL_CA_BUNDLE"); bundle != "" {
		pem, err := ioutil.ReadFile(bundle)
		if err != nil {
			log.Fatalf("Failed to read CA override file %q: %v", bundle, err)
		}
		pool, err := x509.SystemCertPool()
		if err != nil {
			log.Fatalf("Failed to initialize system certificate pool: %v", err)
		}
		if !pool.AppendCertsFromPEM(pem) {
			log.Fatalf("Failed to add certificates from bundle %q", bundle)
		}
		ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					RootCAs: pool,
				}},
		})
		log.Printf("Using CA override bundle from %q", bundle)
	}

	client, err := google.DefaultClient(ctx, scope)
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}

	for _, target := range flag.Args() {
		result, err := fetch(client, target)
		if err != nil {
			log.Fatalf("%s: %v", target, err)
		}
		log.Printf("%s: received %d bases (%d-%d, depth %d)", target, len(result.Sequence), result.Start, result.Finish, result.MaxDepth)

		name := result.Name
		if name == "" {
			name = fmt.Sprintf("contig%d", result.ContigID)
		}
		if err := writeFASTA(w, name, result); err != nil {
			log.Fatalf("Failed to write sequence: %v", err)
		}
		if qw != nil {
			if err := writeQual(qw, name, result); err != nil {
				log.Fatalf("Failed to write quality: %v", err)
			}
		}
	}
}

// fetch posts target to the server when it is a local file and requests the
// stored contig it names otherwise.
func fetch(client *http.Client, target string) (*api.ConsensusResponse, error) {
	var (
		resp *http.Response
		err  error
	)
	if f, ferr := os.Open(target); ferr == nil {
		defer f.Close()
		log.Printf("Posting %q", target)
		resp, err = client.Post(query(*server+"/consensus"), "application/json", f)
	} else {
		log.Printf("Fetching %q", target)
		u := query(*server + "/consensus/" + strings.TrimPrefix(target, "gs://"))
		if *reference != "" {
			u = addParameter(u, "referenceName", *reference)
		}
		resp, err = client.Get(u)
	}
	if err != nil {
		return nil, fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errorFromResponse(resp)
	}

	var result api.ConsensusResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %v", err)
	}
	return &result, nil
}

// query adds the flags that apply to every request to target.
func query(target string) string {
	if *start > 0 {
		target = addParameter(target, "start", strconv.Itoa(*start))
	}
	if *end > 0 {
		target = addParameter(target, "end", strconv.Itoa(*end))
	}
	if *algorithm != "" {
		target = addParameter(target, "algorithm", *algorithm)
	}
	return target
}

func addParameter(input, name, value string) string {
	values := url.Values{}
	values.Set(name, value)
	if strings.Contains(input, "?") {
		return input + "&" + values.Encode()
	}
	return input + "?" + values.Encode()
}

func writeFASTA(w io.Writer, name string, result *api.ConsensusResponse) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, ">%s %d-%d\n", name, result.Start, result.Finish)
	for seq := result.Sequence; len(seq) > 0; {
		n := lineWidth
		if n > len(seq) {
			n = len(seq)
		}
		fmt.Fprintln(bw, seq[:n])
		seq = seq[n:]
	}
	return bw.Flush()
}

func writeQual(w io.Writer, name string, result *api.ConsensusResponse) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, ">%s\n", name)
	for i, q := range result.Quality {
		sep := " "
		if (i+1)%qualsPerLine == 0 || i == len(result.Quality)-1 {
			sep = "\n"
		}
		fmt.Fprintf(bw, "%d%s", q, sep)
	}
	return bw.Flush()
}

func errorFromResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity:
		v := make(map[string]string)
		if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
			return fmt.Errorf("%s: parsing response body: %v", resp.Status, err)
		}
		if message, ok := v["message"]; ok {
			return fmt.Errorf("%s: %v", v["error"], message)
		}
	}
	return fmt.Errorf("unexpected response status: %q", resp.Status)
}
