package document

import (
	"context"
	"errors"
	"fmt"
	"time"

	common_models "go-letters/internal/common/models"
	"go-letters/internal/database"
	"go-letters/internal/workflow"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrStaleDocument means the stored lock_version moved since the document was read.
var ErrStaleDocument = errors.New("document was modified concurrently")

// Filter narrows document listings. Empty fields are ignored.
type Filter struct {
	Status      workflow.Status
	Kind        workflow.Kind
	CreatorID   string
	SignatoryID string
	// Participant matches documents the user created or signs.
	Participant string
}

type DocumentRepository interface {
	Insert(ctx context.Context, doc *workflow.Document) error
	// Get returns nil, nil when no document matches.
	Get(ctx context.Context, id primitive.ObjectID) (*workflow.Document, error)
	List(ctx context.Context, filter Filter, page common_models.PageQuery) ([]workflow.Document, int64, error)
	// CompareAndSwap writes doc only if the stored lock_version still equals
	// expected. The document and its signatories change in one write.
	CompareAndSwap(ctx context.Context, doc *workflow.Document, expected int64) error
	// ClaimCertificate takes the issuance claim of a fully signed, uncertified
	// document. It succeeds when no claim exists, the previous holder released
	// it, or it was taken before staleBefore. It returns nil, nil when the
	// document is certified or another issuer holds a live claim.
	ClaimCertificate(ctx context.Context, id primitive.ObjectID, token string, now, staleBefore time.Time) (*workflow.CertificateClaim, error)
	// ReserveCertificateSeq records a drawn sequence number on the claim held by token.
	ReserveCertificateSeq(ctx context.Context, id primitive.ObjectID, token string, seq int64, issuedAt time.Time) (bool, error)
	// ReleaseCertificateClaim gives the claim up but keeps any reserved number.
	ReleaseCertificateClaim(ctx context.Context, id primitive.ObjectID, token string) error
	// SetCertificate stores cert if token still holds the claim and no
	// certificate is present, and drops the claim.
	SetCertificate(ctx context.Context, id primitive.ObjectID, token string, cert *workflow.Certificate) (bool, error)
	Delete(ctx context.Context, id primitive.ObjectID, expected int64) error
	FindByVerificationCode(ctx context.Context, code string) (*workflow.Document, error)
	ListStalled(ctx context.Context, idleSince time.Time) ([]workflow.Document, error)
	ListUncertified(ctx context.Context) ([]workflow.Document, error)
	ListIssued(ctx context.Context, from, to time.Time) ([]workflow.Document, error)
	EnsureIndexes(ctx context.Context) error
}

type DocumentRepositoryImpl struct {
	collection *mongo.Collection
}

func NewDocumentRepository(db *database.MongodbDB) DocumentRepository {
	return &DocumentRepositoryImpl{
		collection: db.DB.Collection("documents"),
	}
}

func (r *DocumentRepositoryImpl) Insert(ctx context.Context, doc *workflow.Document) error {
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}
	doc.LockVersion = 1
	_, err := r.collection.InsertOne(ctx, doc)
	return err
}

func (r *DocumentRepositoryImpl) findOne(ctx context.Context, filter bson.M) (*workflow.Document, error) {
	var doc workflow.Document
	err := r.collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	// The stored status is a cache; derive it again from the signatories.
	doc.Recompute()
	return &doc, nil
}

func (r *DocumentRepositoryImpl) Get(ctx context.Context, id primitive.ObjectID) (*workflow.Document, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *DocumentRepositoryImpl) FindByVerificationCode(ctx context.Context, code string) (*workflow.Document, error) {
	return r.findOne(ctx, bson.M{"certificate.verification_code": code})
}

func buildFilter(f Filter) bson.M {
	query := bson.M{}
	if f.Status != "" {
		query["status"] = f.Status
	}
	if f.Kind != "" {
		query["kind"] = f.Kind
	}
	if f.CreatorID != "" {
		query["creator_id"] = f.CreatorID
	}
	if f.SignatoryID != "" {
		query["signatories.user_id"] = f.SignatoryID
	}
	if f.Participant != "" {
		query["$or"] = bson.A{
			bson.M{"creator_id": f.Participant},
			bson.M{"signatories.user_id": f.Participant},
		}
	}
	return query
}

func (r *DocumentRepositoryImpl) List(ctx context.Context, filter Filter, page common_models.PageQuery) ([]workflow.Document, int64, error) {
	query := buildFilter(filter)

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(page.Skip()).
		SetLimit(page.Limit)
	docs, err := r.find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

func (r *DocumentRepositoryImpl) find(ctx context.Context, query bson.M, opts ...*options.FindOptions) ([]workflow.Document, error) {
	cursor, err := r.collection.Find(ctx, query, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []workflow.Document
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	for i := range docs {
		docs[i].Recompute()
	}
	return docs, nil
}

func (r *DocumentRepositoryImpl) CompareAndSwap(ctx context.Context, doc *workflow.Document, expected int64) error {
	next := *doc
	next.LockVersion = expected + 1
	res, err := r.collection.ReplaceOne(ctx,
		bson.M{"_id": doc.ID, "lock_version": expected},
		&next,
	)
	if err != nil {
		return fmt.Errorf("failed to write document %s: %w", doc.ID.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return ErrStaleDocument
	}
	doc.LockVersion = next.LockVersion
	return nil
}

func (r *DocumentRepositoryImpl) ClaimCertificate(ctx context.Context, id primitive.ObjectID, token string, now, staleBefore time.Time) (*workflow.CertificateClaim, error) {
	filter := bson.M{
		"_id":         id,
		"status":      workflow.StatusFullySigned,
		"certificate": nil,
		"$or": bson.A{
			bson.M{"certificate_claim": nil},
			bson.M{"certificate_claim.token": ""},
			bson.M{"certificate_claim.claimed_at": bson.M{"$lt": staleBefore}},
		},
	}
	update := bson.M{"$set": bson.M{
		"certificate_claim.token":      token,
		"certificate_claim.claimed_at": now,
	}}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"certificate_claim": 1})

	var out struct {
		Claim *workflow.CertificateClaim `bson:"certificate_claim"`
	}
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&out)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim certificate of %s: %w", id.Hex(), err)
	}
	return out.Claim, nil
}

func (r *DocumentRepositoryImpl) ReserveCertificateSeq(ctx context.Context, id primitive.ObjectID, token string, seq int64, issuedAt time.Time) (bool, error) {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "certificate": nil, "certificate_claim.token": token},
		bson.M{"$set": bson.M{
			"certificate_claim.seq":       seq,
			"certificate_claim.issued_at": issuedAt,
		}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (r *DocumentRepositoryImpl) ReleaseCertificateClaim(ctx context.Context, id primitive.ObjectID, token string) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "certificate_claim.token": token},
		bson.M{"$set": bson.M{"certificate_claim.token": ""}},
	)
	return err
}

func (r *DocumentRepositoryImpl) SetCertificate(ctx context.Context, id primitive.ObjectID, token string, cert *workflow.Certificate) (bool, error) {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{
			"_id":                     id,
			"status":                  workflow.StatusFullySigned,
			"certificate":             nil,
			"certificate_claim.token": token,
		},
		bson.M{
			"$set":   bson.M{"certificate": cert},
			"$unset": bson.M{"certificate_claim": ""},
			"$inc":   bson.M{"lock_version": 1},
		},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (r *DocumentRepositoryImpl) Delete(ctx context.Context, id primitive.ObjectID, expected int64) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "lock_version": expected, "ever_signed": false})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrStaleDocument
	}
	return nil
}

func (r *DocumentRepositoryImpl) ListStalled(ctx context.Context, idleSince time.Time) ([]workflow.Document, error) {
	return r.find(ctx, bson.M{
		"status":     bson.M{"$in": bson.A{workflow.StatusPendingApproval, workflow.StatusPartiallySigned}},
		"updated_at": bson.M{"$lt": idleSince},
	})
}

func (r *DocumentRepositoryImpl) ListUncertified(ctx context.Context) ([]workflow.Document, error) {
	return r.find(ctx, bson.M{
		"status":      workflow.StatusFullySigned,
		"certificate": nil,
	})
}

func (r *DocumentRepositoryImpl) ListIssued(ctx context.Context, from, to time.Time) ([]workflow.Document, error) {
	opts := options.Find().SetSort(bson.D{{Key: "certificate.issued_at", Value: 1}})
	return r.find(ctx, bson.M{
		"certificate.issued_at": bson.M{"$gte": from, "$lt": to},
	}, opts)
}

func (r *DocumentRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "creator_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "signatories.user_id", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "updated_at", Value: 1}}},
		{
			Keys:    bson.D{{Key: "certificate.verification_code", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
	})
	return err
}
