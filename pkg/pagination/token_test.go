package pagination_test

import (
	"encoding/base64"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/gomem/gomem/pkg/codec"
	"github.com/gomem/gomem/pkg/pagination"
)

var _ = Describe("Token codec", func() {
	var requestor uuid.UUID

	BeforeEach(func() {
		requestor = uuid.New()
	})

	fullToken := func() pagination.Token {
		owner := uuid.New()
		space := uuid.New()
		return pagination.Token{
			RequestorID:    codec.IDBytes(requestor),
			Start:          40,
			PageSize:       20,
			SortBy:         "name",
			SortOrder:      "DESCENDING",
			OwnerID:        codec.IDBytes(owner),
			ProviderType:   "OPENAI",
			LabelSelectors: map[string]string{"env": "prod", "team": "ml"},
			NameFilter:     "proj-*",
			SpaceID:        codec.IDBytes(space),
		}
	}

	Describe("round-trip", func() {
		It("decodes what it encodes", func() {
			t := fullToken()
			encoded, err := pagination.Encode(t)
			Expect(err).NotTo(HaveOccurred())

			decoded, err := pagination.Decode(encoded)
			Expect(err).NotTo(HaveOccurred())
			Expect(decoded).To(Equal(t))
		})

		It("round-trips a minimal token", func() {
			t := pagination.Token{RequestorID: codec.IDBytes(requestor), Start: 1}
			encoded, err := pagination.Encode(t)
			Expect(err).NotTo(HaveOccurred())

			decoded, err := pagination.Decode(encoded)
			Expect(err).NotTo(HaveOccurred())
			Expect(decoded).To(Equal(t))
		})
	})

	Describe("empty token", func() {
		It("decodes to the first page", func() {
			decoded, err := pagination.Decode("")
			Expect(err).NotTo(HaveOccurred())
			Expect(decoded).To(Equal(pagination.Token{}))
		})

		It("is not treated as presented by DecodeFor", func() {
			_, presented, err := pagination.DecodeFor("", requestor)
			Expect(err).NotTo(HaveOccurred())
			Expect(presented).To(BeFalse())
		})
	})

	Describe("malformed tokens", func() {
		It("rejects invalid base64 as token format", func() {
			_, err := pagination.Decode("!!!not-base64!!!")
			Expect(status.Code(err)).To(Equal(codes.InvalidArgument))
			Expect(status.Convert(err).Message()).To(Equal("token format"))
		})

		It("rejects valid base64 with invalid payload as token content", func() {
			garbage := base64.URLEncoding.EncodeToString([]byte("not json at all"))
			_, err := pagination.Decode(garbage)
			Expect(status.Code(err)).To(Equal(codes.InvalidArgument))
			Expect(status.Convert(err).Message()).To(Equal("token content"))
		})
	})

	Describe("requestor binding", func() {
		It("accepts the issuing caller", func() {
			encoded, err := pagination.Encode(fullToken())
			Expect(err).NotTo(HaveOccurred())

			decoded, presented, err := pagination.DecodeFor(encoded, requestor)
			Expect(err).NotTo(HaveOccurred())
			Expect(presented).To(BeTrue())
			Expect(decoded.Start).To(Equal(40))
		})

		It("rejects a different caller with PERMISSION_DENIED", func() {
			encoded, err := pagination.Encode(fullToken())
			Expect(err).NotTo(HaveOccurred())

			_, _, err = pagination.DecodeFor(encoded, uuid.New())
			Expect(status.Code(err)).To(Equal(codes.PermissionDenied))
			Expect(status.Convert(err).Message()).To(Equal("Invalid pagination token"))
		})

		It("rejects a malformed requestor id with INVALID_ARGUMENT", func() {
			t := fullToken()
			t.RequestorID = []byte{1, 2, 3}
			encoded, err := pagination.Encode(t)
			Expect(err).NotTo(HaveOccurred())

			_, _, err = pagination.DecodeFor(encoded, requestor)
			Expect(status.Code(err)).To(Equal(codes.InvalidArgument))
			Expect(status.Convert(err).Message()).To(Equal("Invalid requestor ID"))
		})
	})
})
