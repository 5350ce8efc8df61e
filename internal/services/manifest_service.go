package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"safeshipper/manifests/internal/models"
	"safeshipper/manifests/internal/repositories"
)

// JobQueue accepts manifests for background analysis.
type JobQueue interface {
	EnqueueJob(manifestID uuid.UUID)
}

type ManifestService interface {
	CreateShipment(req models.CreateShipmentRequest) (*models.Shipment, error)
	ListShipments(limit int) ([]models.ShipmentDetail, error)
	GetShipment(id uuid.UUID) (*models.ShipmentDetail, error)

	UploadManifest(shipmentID uuid.UUID, file *multipart.FileHeader) (*models.Manifest, error)
	PollStatus(shipmentID uuid.UUID) (*models.ManifestStatusResponse, error)
	ListManifests(limit int) ([]models.ManifestView, error)
	GetManifest(id uuid.UUID) (*models.ManifestView, error)

	ConfirmDangerousGoods(manifestID uuid.UUID, unNumbers []string, user string) (*models.ConfirmResponse, error)
	Finalize(manifestID uuid.UUID, confirmed []models.DangerousGoodConfirmation, user string) (*models.FinalizeResponse, error)
	FinalizeFromDocument(shipmentID, documentID uuid.UUID, confirmed []models.DangerousGoodConfirmation, user string) (*models.LegacyFinalizeResponse, error)
}

type manifestService struct {
	shipmentRepo repositories.ShipmentRepository
	manifestRepo repositories.ManifestRepository
	documentRepo repositories.DocumentRepository
	dgRepo       repositories.DangerousGoodRepository
	storage      StorageService
	queue        JobQueue
	checker      CompatibilityChecker
	log          *zap.Logger
}

func NewManifestService(
	shipmentRepo repositories.ShipmentRepository,
	manifestRepo repositories.ManifestRepository,
	documentRepo repositories.DocumentRepository,
	dgRepo repositories.DangerousGoodRepository,
	storage StorageService,
	queue JobQueue,
	log *zap.Logger,
) ManifestService {
	return &manifestService{
		shipmentRepo: shipmentRepo,
		manifestRepo: manifestRepo,
		documentRepo: documentRepo,
		dgRepo:       dgRepo,
		storage:      storage,
		queue:        queue,
		checker:      NewCompatibilityChecker(),
		log:          log.Named("manifests"),
	}
}

func (s *manifestService) CreateShipment(req models.CreateShipmentRequest) (*models.Shipment, error) {
	tracking := strings.TrimSpace(req.TrackingNumber)
	if tracking == "" {
		return nil, fmt.Errorf("%w: tracking_number is required", ErrInvalidRequest)
	}

	shipment := &models.Shipment{
		ID:             uuid.New(),
		TrackingNumber: tracking,
		CustomerName:   strings.TrimSpace(req.CustomerName),
		Status:         models.ShipmentStatusPending,
	}
	if err := s.shipmentRepo.Create(shipment); err != nil {
		return nil, err
	}
	return shipment, nil
}

func (s *manifestService) ListShipments(limit int) ([]models.ShipmentDetail, error) {
	shipments, err := s.shipmentRepo.List(limit)
	if err != nil {
		return nil, err
	}
	out := make([]models.ShipmentDetail, 0, len(shipments))
	for i := range shipments {
		out = append(out, models.NewShipmentDetail(&shipments[i]))
	}
	return out, nil
}

func (s *manifestService) GetShipment(id uuid.UUID) (*models.ShipmentDetail, error) {
	shipment, err := s.findShipment(id)
	if err != nil {
		return nil, err
	}
	detail := models.NewShipmentDetail(shipment)
	return &detail, nil
}

// UploadManifest stores the file, supersedes the shipment's open manifests
// and queues the new one for analysis.
func (s *manifestService) UploadManifest(shipmentID uuid.UUID, file *multipart.FileHeader) (*models.Manifest, error) {
	if file == nil {
		return nil, fmt.Errorf("%w: file is required", ErrInvalidRequest)
	}
	if _, err := s.findShipment(shipmentID); err != nil {
		return nil, err
	}

	filename, path, err := s.storage.SaveFile(file, "manifest")
	if err != nil {
		return nil, err
	}

	doc := &models.Document{
		ID:               uuid.New(),
		ShipmentID:       shipmentID,
		DocumentType:     models.DocumentTypeDGManifest,
		Status:           models.DocumentQueued,
		Filename:         filename,
		OriginalFileName: filepath.Base(file.Filename),
		MimeType:         file.Header.Get("Content-Type"),
		FileSize:         file.Size,
		FilePath:         path,
	}
	manifest := &models.Manifest{
		ID:           uuid.New(),
		DocumentID:   doc.ID,
		ShipmentID:   shipmentID,
		ManifestType: models.DocumentTypeDGManifest,
		Status:       models.ManifestUploaded,
	}

	superseded, err := s.manifestRepo.CreateWithDocument(doc, manifest)
	if err != nil {
		if delErr := s.storage.DeleteFile(filename); delErr != nil {
			s.log.Warn("failed to remove orphaned upload", zap.String("file", filename), zap.Error(delErr))
		}
		return nil, err
	}

	for _, old := range superseded {
		if delErr := s.storage.DeleteFile(old.Filename); delErr != nil {
			s.log.Warn("failed to remove superseded upload", zap.String("file", old.Filename), zap.Error(delErr))
		}
	}

	s.log.Info("manifest uploaded",
		zap.Stringer("manifest_id", manifest.ID),
		zap.Stringer("shipment_id", shipmentID),
		zap.Int("superseded", len(superseded)))

	s.queue.EnqueueJob(manifest.ID)
	manifest.Document = *doc
	return manifest, nil
}

func (s *manifestService) PollStatus(shipmentID uuid.UUID) (*models.ManifestStatusResponse, error) {
	shipment, err := s.findShipment(shipmentID)
	if err != nil {
		return nil, err
	}
	itemCount, err := s.shipmentRepo.CountItems(shipmentID)
	if err != nil {
		return nil, err
	}
	manifests, err := s.manifestRepo.FindByShipmentID(shipmentID)
	if err != nil {
		return nil, err
	}

	views := make([]models.ManifestView, 0, len(manifests))
	for i := range manifests {
		views = append(views, models.NewManifestView(&manifests[i]))
	}

	return &models.ManifestStatusResponse{
		Shipment: models.ShipmentSummary{
			ID:             shipment.ID.String(),
			TrackingNumber: shipment.TrackingNumber,
			Status:         shipment.Status,
			ItemCount:      itemCount,
		},
		Manifests:     views,
		OverallStatus: OverallStatus(manifests),
	}, nil
}

// OverallStatus folds a shipment's manifests into one aggregate status. The
// first matching rule wins.
func OverallStatus(manifests []models.Manifest) string {
	if len(manifests) == 0 {
		return models.OverallNoManifest
	}

	var analyzing, processing, awaiting, confirmed, failed bool
	for _, m := range manifests {
		switch m.Status {
		case models.ManifestAnalyzing:
			analyzing = true
		case models.ManifestUploaded:
			processing = true
		case models.ManifestAwaitingConfirmation:
			awaiting = true
		case models.ManifestConfirmed:
			confirmed = true
		case models.ManifestProcessingFailed:
			failed = true
		}
		if m.Status != models.ManifestFinalized &&
			(m.Document.Status == models.DocumentQueued || m.Document.Status == models.DocumentProcessing) {
			processing = true
		}
	}

	switch {
	case analyzing:
		return models.OverallAnalyzing
	case processing:
		return models.OverallProcessing
	case awaiting:
		return models.OverallAwaitingConfirmation
	case confirmed:
		return models.OverallConfirmed
	case failed:
		return models.OverallFailed
	default:
		return models.OverallFinalized
	}
}

func (s *manifestService) ListManifests(limit int) ([]models.ManifestView, error) {
	manifests, err := s.manifestRepo.List(limit)
	if err != nil {
		return nil, err
	}
	views := make([]models.ManifestView, 0, len(manifests))
	for i := range manifests {
		views = append(views, models.NewManifestView(&manifests[i]))
	}
	return views, nil
}

func (s *manifestService) GetManifest(id uuid.UUID) (*models.ManifestView, error) {
	manifest, err := s.findManifest(id)
	if err != nil {
		return nil, err
	}
	view := models.NewManifestView(manifest)
	return &view, nil
}

// ConfirmDangerousGoods marks exactly the given UN numbers as confirmed. The
// compatibility of the confirmed set is reported but never blocks the call.
func (s *manifestService) ConfirmDangerousGoods(manifestID uuid.UUID, unNumbers []string, user string) (*models.ConfirmResponse, error) {
	requested := normalizeUNNumbers(unNumbers)
	if len(requested) == 0 {
		return nil, fmt.Errorf("%w: at least one UN number must be confirmed", ErrInvalidRequest)
	}

	manifest, err := s.findManifest(manifestID)
	if err != nil {
		return nil, err
	}
	if !manifest.Status.Confirmable() {
		return nil, fmt.Errorf("%w: status is %s", ErrInvalidState, manifest.Status)
	}

	if missing := undetected(manifest, requested); len(missing) > 0 {
		return nil, fmt.Errorf("%w: UN numbers not found in manifest matches: %s", ErrInvalidRequest, strings.Join(missing, ", "))
	}

	if err := s.manifestRepo.ConfirmMatches(manifestID, requested, user); err != nil {
		if errors.Is(err, repositories.ErrStatusConflict) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
		}
		return nil, err
	}

	goods, err := s.dgRepo.FindByUNNumbers(requested)
	if err != nil {
		return nil, err
	}
	compat := s.checker.Check(goods)

	updated, err := s.findManifest(manifestID)
	if err != nil {
		return nil, err
	}

	s.log.Info("dangerous goods confirmed",
		zap.Stringer("manifest_id", manifestID),
		zap.Strings("un_numbers", requested),
		zap.Bool("compatible", compat.IsCompatible))

	return &models.ConfirmResponse{
		Message:             fmt.Sprintf("Confirmed %d dangerous goods", len(requested)),
		ConfirmedCount:      len(requested),
		CompatibilityResult: compat,
		Manifest:            models.NewManifestView(updated),
	}, nil
}

func (s *manifestService) Finalize(manifestID uuid.UUID, confirmed []models.DangerousGoodConfirmation, user string) (*models.FinalizeResponse, error) {
	manifest, err := s.findManifest(manifestID)
	if err != nil {
		return nil, err
	}

	created, compat, err := s.finalize(manifest, confirmed, user)
	if err != nil {
		return nil, err
	}

	updated, err := s.findManifest(manifestID)
	if err != nil {
		return nil, err
	}

	return &models.FinalizeResponse{
		Message:             fmt.Sprintf("Manifest finalized with %d dangerous goods", created),
		CreatedItemsCount:   created,
		CompatibilityResult: compat,
		Manifest:            models.NewManifestView(updated),
	}, nil
}

// FinalizeFromDocument resolves the manifest through its document and runs
// the same finalize path as Finalize.
func (s *manifestService) FinalizeFromDocument(shipmentID, documentID uuid.UUID, confirmed []models.DangerousGoodConfirmation, user string) (*models.LegacyFinalizeResponse, error) {
	if _, err := s.findShipment(shipmentID); err != nil {
		return nil, err
	}

	doc, err := s.documentRepo.FindByID(documentID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, documentID)
		}
		return nil, err
	}
	if doc.ShipmentID != shipmentID || doc.DocumentType != models.DocumentTypeDGManifest {
		return nil, fmt.Errorf("%w: %s is not a manifest of shipment %s", ErrDocumentNotFound, documentID, shipmentID)
	}

	manifest, err := s.manifestRepo.FindByDocumentID(shipmentID, documentID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: no manifest for document %s", ErrManifestNotFound, documentID)
		}
		return nil, err
	}

	created, compat, err := s.finalize(manifest, confirmed, user)
	if err != nil {
		return nil, err
	}

	shipment, err := s.GetShipment(shipmentID)
	if err != nil {
		return nil, err
	}

	compatibilityStatus := "compatible"
	if len(compat.Warnings) > 0 {
		compatibilityStatus = "compatible_with_warnings"
	}

	return &models.LegacyFinalizeResponse{
		Message:             fmt.Sprintf("Shipment finalized with %d dangerous goods from manifest", created),
		Shipment:            *shipment,
		CreatedItemsCount:   created,
		CompatibilityStatus: compatibilityStatus,
		GeneratedDocuments:  []string{},
		DocumentStatus:      models.DocumentValidatedOK,
	}, nil
}

// finalize validates the confirmations, checks segregation and writes the
// shipment items. Nothing is written when any check fails.
func (s *manifestService) finalize(manifest *models.Manifest, confirmed []models.DangerousGoodConfirmation, user string) (int, models.CompatibilityResult, error) {
	var none models.CompatibilityResult

	if manifest.Status == models.ManifestFinalized {
		return 0, none, ErrAlreadyFinalized
	}
	if !manifest.Status.Confirmable() {
		return 0, none, fmt.Errorf("%w: status is %s", ErrInvalidState, manifest.Status)
	}
	if len(confirmed) == 0 {
		return 0, none, fmt.Errorf("%w: at least one dangerous good must be confirmed", ErrInvalidRequest)
	}

	seen := make(map[string]bool, len(confirmed))
	unNumbers := make([]string, 0, len(confirmed))
	for i := range confirmed {
		dg := &confirmed[i]
		dg.UNNumber = NormalizeUNNumber(dg.UNNumber)
		if dg.UNNumber == "" {
			return 0, none, fmt.Errorf("%w: un_number is required", ErrInvalidRequest)
		}
		if seen[dg.UNNumber] {
			return 0, none, fmt.Errorf("%w: %s listed more than once", ErrInvalidRequest, dg.UNNumber)
		}
		if dg.Quantity < 0 || dg.WeightKg < 0 {
			return 0, none, fmt.Errorf("%w: %s has a negative quantity or weight", ErrInvalidRequest, dg.UNNumber)
		}
		seen[dg.UNNumber] = true
		unNumbers = append(unNumbers, dg.UNNumber)
	}

	goods, err := s.dgRepo.FindByUNNumbers(unNumbers)
	if err != nil {
		return 0, none, err
	}
	catalog := make(map[string]*models.DangerousGood, len(goods))
	for i := range goods {
		catalog[goods[i].UNNumber] = &goods[i]
	}
	var unknown []string
	for _, un := range unNumbers {
		if catalog[un] == nil {
			unknown = append(unknown, un)
		}
	}
	if len(unknown) > 0 {
		return 0, none, fmt.Errorf("%w: %s", ErrUnknownUNNumber, strings.Join(unknown, ", "))
	}
	if missing := undetected(manifest, unNumbers); len(missing) > 0 {
		return 0, none, fmt.Errorf("%w: UN numbers not found in manifest matches: %s", ErrInvalidRequest, strings.Join(missing, ", "))
	}

	compat := s.checker.Check(goods)
	if !compat.IsCompatible {
		s.log.Info("finalize rejected by segregation check",
			zap.Stringer("manifest_id", manifest.ID),
			zap.Strings("conflicts", compat.Conflicts))
		return 0, compat, &IncompatibilityError{Result: compat}
	}

	items := make([]models.ShipmentItem, 0, len(confirmed))
	sourceID := manifest.ID
	for _, dg := range confirmed {
		entry := catalog[dg.UNNumber]
		description := strings.TrimSpace(dg.Description)
		if description == "" {
			description = entry.ProperShippingName
		}
		quantity := dg.Quantity
		if quantity == 0 {
			quantity = 1
		}

		unNumber, hazardClass := entry.UNNumber, entry.HazardClass
		item := models.ShipmentItem{
			ID:               uuid.New(),
			ShipmentID:       manifest.ShipmentID,
			Description:      description,
			Quantity:         quantity,
			WeightKg:         dg.WeightKg,
			IsDangerousGood:  true,
			UNNumber:         &unNumber,
			HazardClass:      &hazardClass,
			SourceManifestID: &sourceID,
		}
		if entry.PackingGroup != "" {
			pg := entry.PackingGroup
			item.PackingGroup = &pg
		}
		items = append(items, item)
	}

	payload, err := json.Marshal(confirmed)
	if err != nil {
		return 0, none, fmt.Errorf("failed to encode confirmations: %w", err)
	}

	err = s.manifestRepo.Finalize(manifest.ID, &repositories.FinalizeData{
		Items:         items,
		Confirmations: confirmed,
		Payload:       payload,
		User:          user,
	})
	if err != nil {
		if errors.Is(err, repositories.ErrStatusConflict) {
			return 0, none, ErrAlreadyFinalized
		}
		return 0, none, err
	}

	s.log.Info("manifest finalized",
		zap.Stringer("manifest_id", manifest.ID),
		zap.Int("created_items", len(items)),
		zap.String("user", user))

	return len(items), compat, nil
}

// undetected returns the UN numbers the analysis never matched on manifest.
func undetected(manifest *models.Manifest, unNumbers []string) []string {
	present := make(map[string]bool, len(manifest.DGMatches))
	for _, m := range manifest.DGMatches {
		present[m.UNNumber] = true
	}
	var missing []string
	for _, un := range unNumbers {
		if !present[un] {
			missing = append(missing, un)
		}
	}
	return missing
}

func (s *manifestService) findShipment(id uuid.UUID) (*models.Shipment, error) {
	shipment, err := s.shipmentRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrShipmentNotFound, id)
		}
		return nil, err
	}
	return shipment, nil
}

func (s *manifestService) findManifest(id uuid.UUID) (*models.Manifest, error) {
	manifest, err := s.manifestRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, id)
		}
		return nil, err
	}
	return manifest, nil
}

func normalizeUNNumbers(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		un := NormalizeUNNumber(r)
		if un == "" || seen[un] {
			continue
		}
		seen[un] = true
		out = append(out, un)
	}
	return out
}
