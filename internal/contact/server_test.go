package contact

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/numify/internal/extract"
	"github.com/zombor/numify/internal/scanning"
)

func multipartPhoto(filename string, fields map[string]string) (*bytes.Buffer, string) {
	var b bytes.Buffer
	writer := multipart.NewWriter(&b)
	part, _ := writer.CreateFormFile("file", filename)
	part.Write([]byte("fake image data"))
	for k, v := range fields {
		writer.WriteField(k, v)
	}
	writer.Close()
	return &b, writer.FormDataContentType()
}

func decodeBody(resp *http.Response, v any) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	Expect(json.Unmarshal(body, v)).To(Succeed())
}

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		scanner     *mockScanner
		service     *Service
		server      *Server
		auth        BasicAuth
		ghttpServer *ghttp.Server
	)

	setupServer := func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
		service = NewServiceWithDeps(db, scanner, extract.NewExtractor(&extract.CyclingPalette{}), &sequenceIDGenerator{}, &steppingClock{})
		server = NewServerWithMux(service, auth, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		ghttpServer.AppendHandlers(server.ServeHTTP, server.ServeHTTP, server.ServeHTTP)
	}

	BeforeEach(func() {
		db = newMockDB()
		scanner = newMockScanner()
		auth = BasicAuth{}
		setupServer()
	})

	AfterEach(func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
	})

	Describe("handleIndex", func() {
		It("should return HTML containing Numify", func() {
			resp, err := http.Get(ghttpServer.URL() + "/")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("Numify"))
		})

		It("should reject other methods", func() {
			resp, err := http.Post(ghttpServer.URL()+"/", "text/plain", nil)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusMethodNotAllowed))
		})
	})

	Describe("handleScan", func() {
		When("the photo holds a contact", func() {
			It("should return the candidates", func() {
				body, contentType := multipartPhoto("card.jpg", nil)
				resp, err := http.Post(ghttpServer.URL()+"/api/scan", contentType, body)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))

				var result ScanResult
				decodeBody(resp, &result)
				Expect(result.Candidates).To(HaveLen(1))
				Expect(result.Candidates[0].Name).To(Equal("John Smith"))
				Expect(result.Candidates[0].Phone).To(Equal("14155550199"))
				Expect(result.Candidates[0].Initial).To(Equal("J"))
			})

			It("should guess the content type from the filename", func() {
				body, contentType := multipartPhoto("IMG_0042.HEIC", nil)
				resp, err := http.Post(ghttpServer.URL()+"/api/scan", contentType, body)
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(scanner.contentType).To(Equal("image/heic"))
			})
		})

		When("single mode is requested", func() {
			BeforeEach(func() {
				scanner.recognition = &scanning.Recognition{
					Text:   "Jane Doe\ncall 555-1234\nBob\n555-987-6543",
					Blocks: []extract.Block{{Text: "Jane Doe"}, {Text: "call 555-1234"}, {Text: "Bob"}, {Text: "555-987-6543"}},
				}
			})

			It("should return one candidate", func() {
				body, contentType := multipartPhoto("card.jpg", map[string]string{"mode": "single"})
				resp, err := http.Post(ghttpServer.URL()+"/api/scan", contentType, body)
				Expect(err).NotTo(HaveOccurred())

				var result ScanResult
				decodeBody(resp, &result)
				Expect(result.Candidates).To(HaveLen(1))
				Expect(result.Candidates[0].Name).To(Equal("Jane Doe"))
				Expect(result.Candidates[0].Phone).To(Equal("5551234"))
			})
		})

		When("a search query is given", func() {
			BeforeEach(func() {
				scanner.recognition = &scanning.Recognition{Text: "Alice\n555-123-4567\nBob\n212-555-0100"}
			})

			It("should filter the candidates", func() {
				body, contentType := multipartPhoto("card.jpg", map[string]string{"q": "bob"})
				resp, err := http.Post(ghttpServer.URL()+"/api/scan", contentType, body)
				Expect(err).NotTo(HaveOccurred())

				var result ScanResult
				decodeBody(resp, &result)
				Expect(result.Candidates).To(HaveLen(1))
				Expect(result.Candidates[0].Name).To(Equal("Bob"))
			})
		})

		When("no file is provided", func() {
			It("should return status Bad Request", func() {
				var b bytes.Buffer
				writer := multipart.NewWriter(&b)
				writer.WriteField("mode", "single")
				writer.Close()

				resp, err := http.Post(ghttpServer.URL()+"/api/scan", writer.FormDataContentType(), &b)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

				var body map[string]string
				decodeBody(resp, &body)
				Expect(body["error"]).To(ContainSubstring("No photo"))
			})
		})

		When("the body is not multipart", func() {
			It("should return status Bad Request", func() {
				resp, err := http.Post(ghttpServer.URL()+"/api/scan", "application/json", strings.NewReader("{}"))
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})

		When("the scanner fails", func() {
			BeforeEach(func() {
				scanner.err = errors.New("engine down")
			})

			It("should name the failed action", func() {
				body, contentType := multipartPhoto("card.jpg", nil)
				resp, err := http.Post(ghttpServer.URL()+"/api/scan", contentType, body)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))

				var errBody map[string]string
				decodeBody(resp, &errBody)
				Expect(errBody["error"]).To(HavePrefix("Scan failed"))
			})
		})
	})

	Describe("handleActions", func() {
		It("should return the URIs", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/actions?phone=" + url.QueryEscape("+1 415-555-0199"))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var actions Actions
			decodeBody(resp, &actions)
			Expect(actions.Dial).To(Equal("tel:14155550199"))
			Expect(actions.Chat).To(Equal("whatsapp://send?phone=14155550199"))
		})

		It("should reject short numbers", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/actions?phone=12345")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

			var body map[string]string
			decodeBody(resp, &body)
			Expect(body["error"]).To(ContainSubstring("valid phone number is required"))
		})
	})

	Describe("handleSaveContact", func() {
		post := func(payload string) *http.Response {
			resp, err := http.Post(ghttpServer.URL()+"/api/contacts", "application/json", strings.NewReader(payload))
			Expect(err).NotTo(HaveOccurred())
			return resp
		}

		It("should create the contact", func() {
			resp := post(`{"name": "Jane Doe", "phone": "555-123-4567"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var contact Contact
			decodeBody(resp, &contact)
			Expect(contact.ID).To(Equal("id-1"))
			Expect(contact.Phone).To(Equal("5551234567"))
			Expect(db.contacts).To(HaveKey("id-1"))
		})

		It("should reject a short phone", func() {
			resp := post(`{"name": "Jane Doe", "phone": "555"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

			var body map[string]string
			decodeBody(resp, &body)
			Expect(body["error"]).To(HavePrefix("Save failed"))
		})

		It("should reject an invalid body", func() {
			resp := post(`not json`)
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		When("the store fails", func() {
			BeforeEach(func() {
				db.saveErr = errors.New("disk full")
			})

			It("should return status Internal Server Error", func() {
				resp := post(`{"name": "Jane Doe", "phone": "555-123-4567"}`)
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			})
		})
	})

	Describe("handleListContacts", func() {
		When("no contacts exist", func() {
			It("should return an empty array", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/contacts")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var contacts []*Contact
				decodeBody(resp, &contacts)
				Expect(contacts).NotTo(BeNil())
				Expect(contacts).To(BeEmpty())
			})
		})

		When("the store fails", func() {
			BeforeEach(func() {
				db.listErr = errors.New("boom")
			})

			It("should return status Internal Server Error", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/contacts")
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			})
		})
	})

	Describe("handleGetContact", func() {
		BeforeEach(func() {
			db.contacts["c1"] = &Contact{ID: "c1", Name: "Jane"}
		})

		It("should return the contact", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/contacts/c1")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var contact Contact
			decodeBody(resp, &contact)
			Expect(contact.Name).To(Equal("Jane"))
		})

		It("should return status Not Found for unknown IDs", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/contacts/missing")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("handleDeleteContact", func() {
		del := func(id string) *http.Response {
			req, err := http.NewRequest(http.MethodDelete, ghttpServer.URL()+"/api/contacts/"+id, nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			return resp
		}

		BeforeEach(func() {
			db.contacts["c1"] = &Contact{ID: "c1"}
		})

		It("should return status No Content", func() {
			Expect(del("c1").StatusCode).To(Equal(http.StatusNoContent))
			Expect(db.contacts).NotTo(HaveKey("c1"))
		})

		It("should return status Not Found for unknown IDs", func() {
			Expect(del("missing").StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("handleExportContacts", func() {
		It("should send a workbook", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/contacts/export.xlsx")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Disposition")).To(ContainSubstring("contacts.xlsx"))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			// XLSX files are zip archives
			Expect(body).To(HavePrefix("PK"))
		})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "admin", Password: "secret"}
			setupServer()
		})

		It("should reject requests without credentials", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/contacts")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("Numify"))
		})

		It("should accept valid credentials", func() {
			req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/contacts", nil)
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("admin:secret")))
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("should reject a wrong password", func() {
			req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/contacts", nil)
			Expect(err).NotTo(HaveOccurred())
			req.SetBasicAuth("admin", "nope")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("Handler", func() {
		It("should answer preflight requests", func() {
			ghttpServer.Close()
			ghttpServer = ghttp.NewServer()
			ghttpServer.AppendHandlers(server.Handler().ServeHTTP)

			req, err := http.NewRequest(http.MethodOptions, ghttpServer.URL()+"/api/scan", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})
	})
})

var _ = Describe("Integration", func() {
	var (
		db          *BoltDB
		scanner     *mockScanner
		ghttpServer *ghttp.Server
	)

	BeforeEach(func() {
		var err error
		db, err = NewBoltDB(filepath.Join(GinkgoT().TempDir(), "numify.db"))
		Expect(err).NotTo(HaveOccurred())
		scanner = newMockScanner()

		server := NewServer(NewService(db, scanner), BasicAuth{})
		ghttpServer = ghttp.NewServer()
		ghttpServer.AppendHandlers(server.ServeHTTP, server.ServeHTTP, server.ServeHTTP)
	})

	AfterEach(func() {
		ghttpServer.Close()
		db.Close()
	})

	It("should scan a card, save the candidate and list it", func() {
		// --- Step 1: Scan ---
		body, contentType := multipartPhoto("card.jpg", nil)
		resp, err := http.Post(ghttpServer.URL()+"/api/scan", contentType, body)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var result ScanResult
		decodeBody(resp, &result)
		Expect(result.Candidates).To(HaveLen(1))
		Expect(extract.Palette).To(ContainElement(result.Candidates[0].Color))

		// Nothing is stored until the user saves
		contacts, err := db.ListContacts()
		Expect(err).NotTo(HaveOccurred())
		Expect(contacts).To(BeEmpty())

		// --- Step 2: Save ---
		payload, _ := json.Marshal(map[string]string{
			"name":  result.Candidates[0].Name,
			"phone": result.Candidates[0].Phone,
		})
		saveResp, err := http.Post(ghttpServer.URL()+"/api/contacts", "application/json", bytes.NewReader(payload))
		Expect(err).NotTo(HaveOccurred())
		Expect(saveResp.StatusCode).To(Equal(http.StatusCreated))

		var saved Contact
		decodeBody(saveResp, &saved)
		Expect(saved.ID).NotTo(BeEmpty())

		// --- Step 3: List ---
		listResp, err := http.Get(ghttpServer.URL() + "/api/contacts")
		Expect(err).NotTo(HaveOccurred())
		var listed []*Contact
		decodeBody(listResp, &listed)
		Expect(listed).To(HaveLen(1))
		Expect(listed[0].Name).To(Equal("John Smith"))
		Expect(listed[0].Phone).To(Equal("14155550199"))
	})
})
