package receipt_test

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/ticket-ocr/internal/receipt"
	"github.com/zombor/ticket-ocr/internal/scanning"
)

func completion(content string) map[string]any {
	return map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	}
}

var _ = Describe("Integration", func() {
	var (
		bucketDir string
		upstream  *ghttp.Server
		writer    *receipt.ImageWriter
		gateway   *ghttp.Server
		imageData []byte
	)

	jpgFiles := func() []string {
		matches, err := filepath.Glob(filepath.Join(bucketDir, "*.jpg"))
		Expect(err).NotTo(HaveOccurred())
		return matches
	}

	postReceipt := func() (int, string) {
		body := `{"base64_image":"` + base64.StdEncoding.EncodeToString(imageData) + `"}`
		req, err := http.NewRequest(http.MethodPost, gateway.URL()+"/api/ticket-mistral-ocr", strings.NewReader(body))
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", "integration-secret")
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		respBody, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		return resp.StatusCode, string(respBody)
	}

	BeforeEach(func() {
		// The bucket does not exist yet; storage creates it
		bucketDir = filepath.Join(GinkgoT().TempDir(), "app", "dataset", "bills")
		imageData = []byte("\xff\xd8\xff\xe0 fake jpeg")

		upstream = ghttp.NewServer()

		store, err := receipt.NewLocalStorage(bucketDir)
		Expect(err).NotTo(HaveOccurred())
		writer = receipt.NewImageWriter(store, 1, 8)

		scanner, err := scanning.NewMistral(upstream.URL(), "mistral-key", "mistral-small-latest",
			scanning.DefaultInstructions(scanning.PromptSystemUser, scanning.FormatJSONObject), 0)
		Expect(err).NotTo(HaveOccurred())

		server := receipt.NewServer(receipt.NewService(scanner, writer), "integration-secret")
		gateway = ghttp.NewServer()
		gateway.RouteToHandler(http.MethodPost, "/api/ticket-mistral-ocr", server.ServeHTTP)
	})

	AfterEach(func() {
		Expect(writer.Close(context.Background())).To(Succeed())
		gateway.Close()
		upstream.Close()
	})

	When("the model extracts articles", func() {
		BeforeEach(func() {
			upstream.RouteToHandler(http.MethodPost, "/v1/chat/completions", ghttp.CombineHandlers(
				ghttp.VerifyHeaderKV("Authorization", "Bearer mistral-key"),
				ghttp.RespondWithJSONEncoded(http.StatusOK,
					completion(`{"articles":[{"nomArticle":"Bread","prixUnitaire":2.5}]}`)),
			))
		})

		It("returns the exact articles and eventually stores one jpg", func() {
			status, body := postReceipt()
			Expect(status).To(Equal(http.StatusOK))
			Expect(body).To(MatchJSON(`{"articles":[{"nomArticle":"Bread","prixUnitaire":2.5}]}`))

			Eventually(jpgFiles).Should(HaveLen(1))
			stored, err := os.ReadFile(jpgFiles()[0])
			Expect(err).NotTo(HaveOccurred())
			Expect(stored).To(Equal(imageData))
		})

		It("stores identical requests under distinct names", func() {
			status, _ := postReceipt()
			Expect(status).To(Equal(http.StatusOK))
			status, _ = postReceipt()
			Expect(status).To(Equal(http.StatusOK))

			Eventually(jpgFiles).Should(HaveLen(2))
		})
	})

	When("the model cannot read the receipt", func() {
		BeforeEach(func() {
			upstream.RouteToHandler(http.MethodPost, "/v1/chat/completions",
				ghttp.RespondWithJSONEncoded(http.StatusOK, completion(`{"error":"cannot_read"}`)))
		})

		It("returns 400 and writes nothing", func() {
			status, body := postReceipt()
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(body).To(ContainSubstring("illisible"))

			Expect(writer.Close(context.Background())).To(Succeed())
			Expect(jpgFiles()).To(BeEmpty())
		})
	})

	When("the upstream API fails", func() {
		BeforeEach(func() {
			upstream.RouteToHandler(http.MethodPost, "/v1/chat/completions",
				ghttp.RespondWith(http.StatusServiceUnavailable, `{"message":"overloaded"}`))
		})

		It("returns the upstream status with an error message", func() {
			status, body := postReceipt()
			Expect(status).To(Equal(http.StatusServiceUnavailable))
			Expect(body).To(ContainSubstring(`"error":`))
			Expect(body).To(ContainSubstring("overloaded"))
		})
	})

	When("the upstream API is unreachable", func() {
		BeforeEach(func() {
			upstream.Close()
		})

		It("returns 500 with an error message", func() {
			status, body := postReceipt()
			Expect(status).To(Equal(http.StatusInternalServerError))
			Expect(body).To(ContainSubstring(`"error":`))
		})
	})

	When("the api key is wrong", func() {
		It("returns 403 without calling the model", func() {
			req, err := http.NewRequest(http.MethodPost, gateway.URL()+"/api/ticket-mistral-ocr",
				strings.NewReader(`{"base64_image":"aGVsbG8="}`))
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("x-api-key", "wrong")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusForbidden))
			Expect(upstream.ReceivedRequests()).To(BeEmpty())
		})
	})
})
