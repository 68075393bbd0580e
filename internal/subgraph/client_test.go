package subgraph_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/KeoTheUndamaged/GraphQLGateway/internal/graphql"
	"github.com/KeoTheUndamaged/GraphQLGateway/internal/subgraph"
)

var _ = Describe("Client", func() {
	newClient := func(endpoint string) *subgraph.Client {
		client, err := subgraph.NewClient("users", endpoint, 2*time.Second, nil)
		Expect(err).NotTo(HaveOccurred())
		return client
	}

	Describe("NewClient", func() {
		It("should reject an empty endpoint", func() {
			_, err := subgraph.NewClient("users", "", time.Second, nil)
			Expect(err).To(HaveOccurred())
		})

		It("should reject a non-http scheme", func() {
			_, err := subgraph.NewClient("users", "ftp://example.com", time.Second, nil)
			Expect(err).To(HaveOccurred())
		})

		It("should accept http and https endpoints", func() {
			_, err := subgraph.NewClient("users", "http://localhost:4001/graphql", time.Second, nil)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("Do", func() {
		It("should return a parsed response on success", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.Method).To(Equal(http.MethodPost))
				Expect(r.Header.Get("Content-Type")).To(Equal("application/json"))
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"data":{"user":{"id":"1"}}}`))
			}))
			defer server.Close()

			resp, err := newClient(server.URL).Do(context.Background(), graphql.Request{Query: "{ user { id } }"})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.HasData()).To(BeTrue())
			Expect(string(resp.Data)).To(ContainSubstring(`"id":"1"`))
		})

		It("should treat a 200 with only an errors array as a valid response", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"errors":[{"message":"field unknown"}]}`))
			}))
			defer server.Close()

			resp, err := newClient(server.URL).Do(context.Background(), graphql.Request{Query: "{ nope }"})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Errors).To(HaveLen(1))
			Expect(resp.Errors[0].Message).To(Equal("field unknown"))
		})

		It("should preserve an explicit null data field", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"data":null,"errors":[{"message":"not found"}]}`))
			}))
			defer server.Close()

			resp, err := newClient(server.URL).Do(context.Background(), graphql.Request{Query: "{ user }"})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.HasData()).To(BeTrue())
			Expect(string(resp.Data)).To(Equal("null"))
		})

		It("should escalate an HTML body to an invalid shape error", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("<html><body>gateway error</body></html>"))
			}))
			defer server.Close()

			_, err := newClient(server.URL).Do(context.Background(), graphql.Request{Query: "{ user }"})
			Expect(err).To(MatchError(graphql.ErrInvalidResponseShape))
		})

		It("should carry the embedded body of an error status response", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte(`{"data":null,"errors":[{"message":"record not found"}]}`))
			}))
			defer server.Close()

			_, err := newClient(server.URL).Do(context.Background(), graphql.Request{Query: "{ user }"})

			var callErr *subgraph.CallError
			Expect(errors.As(err, &callErr)).To(BeTrue())
			Expect(callErr.StatusCode).To(Equal(http.StatusNotFound))
			Expect(callErr.Response).NotTo(BeNil())
			Expect(callErr.Response.Errors[0].Message).To(Equal("record not found"))
		})

		It("should report a 500 without inventing an embedded body", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte("internal error"))
			}))
			defer server.Close()

			_, err := newClient(server.URL).Do(context.Background(), graphql.Request{Query: "{ user }"})

			var callErr *subgraph.CallError
			Expect(errors.As(err, &callErr)).To(BeTrue())
			Expect(callErr.StatusCode).To(Equal(http.StatusInternalServerError))
			Expect(callErr.Response).To(BeNil())
		})

		It("should report a refused connection with its connectivity code", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
			endpoint := server.URL
			server.Close()

			_, err := newClient(endpoint).Do(context.Background(), graphql.Request{Query: "{ user }"})

			var callErr *subgraph.CallError
			Expect(errors.As(err, &callErr)).To(BeTrue())
			Expect(callErr.Code).To(Equal("ECONNREFUSED"))
		})

		It("should report a timed out exchange with its connectivity code", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(500 * time.Millisecond)
			}))
			defer server.Close()

			client, err := subgraph.NewClient("users", server.URL, 50*time.Millisecond, nil)
			Expect(err).NotTo(HaveOccurred())

			_, err = client.Do(context.Background(), graphql.Request{Query: "{ user }"})

			var callErr *subgraph.CallError
			Expect(errors.As(err, &callErr)).To(BeTrue())
			Expect(callErr.Code).To(Equal("ETIMEDOUT"))
		})
	})
})
