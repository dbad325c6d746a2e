package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"civiclens-be/engine"
	"civiclens-be/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Engine is the lifecycle engine all issue handlers delegate to. main wires
// it up before mounting routes; tests inject a service over the in-memory
// store.
var Engine *engine.Service

// actorFromContext builds the explicit actor the engine requires from the
// claims the auth middleware stored.
func actorFromContext(c *gin.Context) (engine.Actor, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return engine.Actor{}, false
	}
	id, err := primitive.ObjectIDFromHex(userID.(string))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return engine.Actor{}, false
	}

	actor := engine.Actor{ID: id, Role: models.RoleCitizen}
	if role, ok := c.Get("role"); ok {
		if r, ok := role.(string); ok && models.ValidRole(models.Role(r)) {
			actor.Role = models.Role(r)
		}
	}
	if department, ok := c.Get("department"); ok {
		actor.Department, _ = department.(string)
	}
	return actor, true
}

func issueIDFromParam(c *gin.Context) (primitive.ObjectID, bool) {
	issueID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return primitive.NilObjectID, false
	}
	return issueID, true
}

// respondEngineError maps engine error kinds to HTTP statuses.
func respondEngineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Issue not found"})
	case errors.Is(err, engine.ErrUnauthorizedTransition):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, engine.ErrSelfVote):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, engine.ErrConcurrentTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, engine.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, engine.ErrStaleVote):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, engine.ErrUnroutedDepartment):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, engine.ErrEvidence):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
	}
}

// issueView renders an issue with its canonical status and ledger tallies.
// Status comes from the projector only.
func issueView(issue *models.Issue, viewer primitive.ObjectID) gin.H {
	view := gin.H{
		"id":             issue.ID,
		"title":          issue.Title,
		"description":    issue.Description,
		"category":       issue.Category,
		"location":       issue.Location,
		"reportMedia":    issue.ReportMedia,
		"progress":       issue.Progress,
		"status":         engine.StatusLabel(issue),
		"createdBy":      issue.CreatedBy,
		"department":     issue.Department,
		"realVotes":      len(issue.Verification.Real),
		"fakeVotes":      len(issue.Verification.Fake),
		"netCredibility": issue.Verification.NetCredibility(),
		"createdAt":      issue.CreatedAt,
		"updatedAt":      issue.UpdatedAt,
	}
	if issue.Resolution != nil {
		view["resolution"] = issue.Resolution
	}
	if !viewer.IsZero() {
		verdict, voted := issue.Verification.Verdict(viewer)
		view["userHasVoted"] = voted
		if voted {
			view["userVerdict"] = verdict
		}
	}
	return view
}

// CreateIssue handles the creation of a new issue
func CreateIssue(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var input struct {
		Title           string    `json:"title" binding:"required,max=200"`
		Description     string    `json:"description" binding:"required,max=1000"`
		Category        string    `json:"category" binding:"required"`
		Latitude        float64   `json:"latitude" binding:"required"`
		Longitude       float64   `json:"longitude" binding:"required"`
		MediaURL        string    `json:"mediaUrl" binding:"required"`
		MediaCapturedAt time.Time `json:"mediaCapturedAt" binding:"required"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !models.ValidCategory(models.IssueCategory(input.Category)) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category"})
		return
	}

	issue, err := Engine.CreateIssue(c.Request.Context(), engine.CreateIssueInput{
		Title:       input.Title,
		Description: input.Description,
		Category:    models.IssueCategory(input.Category),
		CreatedBy:   actor.ID,
		Location:    models.Coordinate{Latitude: input.Latitude, Longitude: input.Longitude},
		ReportMedia: models.MediaRef{URL: input.MediaURL, CapturedAt: input.MediaCapturedAt},
	})
	if err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusCreated, issueView(issue, actor.ID))
}

// GetIssue retrieves an issue by its ID with vote and status information
func GetIssue(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	issueID, ok := issueIDFromParam(c)
	if !ok {
		return
	}

	issue, err := Engine.GetIssue(c.Request.Context(), issueID)
	if err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, issueView(issue, actor.ID))
}

// GetAllIssues handles retrieving issues with filtering, sorting, pagination
func GetAllIssues(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	filter := engine.ListFilter{
		Search: c.Query("search"),
		Sort:   engine.SortKey(c.DefaultQuery("sort", "newest")),
	}
	if status := c.Query("status"); status != "" && status != "all" {
		if !engine.ValidStage(models.Stage(status)) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
			return
		}
		filter.Status = models.Stage(status)
	}
	if category := c.Query("category"); category != "" && category != "all" {
		filter.Category = models.IssueCategory(category)
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	issues, err := Engine.ListIssues(c.Request.Context(), filter)
	if err != nil {
		respondEngineError(c, err)
		return
	}

	totalIssues := len(issues)
	totalPages := (totalIssues + limit - 1) / limit
	start := (page - 1) * limit
	if start > totalIssues {
		start = totalIssues
	}
	end := start + limit
	if end > totalIssues {
		end = totalIssues
	}

	views := make([]gin.H, 0, end-start)
	for i := start; i < end; i++ {
		views = append(views, issueView(&issues[i], actor.ID))
	}

	c.JSON(http.StatusOK, gin.H{
		"issues":      views,
		"totalIssues": totalIssues,
		"totalPages":  totalPages,
		"currentPage": page,
	})
}

// GetIssuesByUser retrieves all issues created by the authenticated user
func GetIssuesByUser(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	issues, err := Engine.IssuesByCreator(c.Request.Context(), actor.ID)
	if err != nil {
		respondEngineError(c, err)
		return
	}

	views := make([]gin.H, 0, len(issues))
	for i := range issues {
		views = append(views, issueView(&issues[i], actor.ID))
	}
	c.JSON(http.StatusOK, views)
}

// VoteOnIssue casts the user's real/fake verdict on an issue
func VoteOnIssue(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	issueID, ok := issueIDFromParam(c)
	if !ok {
		return
	}

	var input struct {
		Verdict string `json:"verdict" binding:"required,oneof=real fake"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ledger, err := Engine.CastVote(c.Request.Context(), issueID, actor.ID, models.Verdict(input.Verdict))
	if err != nil {
		respondEngineError(c, err)
		return
	}

	quorum := Engine.Quorum()
	c.JSON(http.StatusOK, gin.H{
		"message":        "Vote recorded",
		"userVerdict":    input.Verdict,
		"realVotes":      len(ledger.Real),
		"fakeVotes":      len(ledger.Fake),
		"netCredibility": ledger.NetCredibility(),
		"quorumReached":  engine.QuorumReached(ledger, quorum),
	})
}

// AdvanceIssue requests a lifecycle transition for an issue
func AdvanceIssue(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	issueID, ok := issueIDFromParam(c)
	if !ok {
		return
	}

	var input struct {
		Target   string `json:"target" binding:"required"`
		Override bool   `json:"override"`
		Evidence *struct {
			MediaURL           string    `json:"mediaUrl"`
			CapturedAt         time.Time `json:"capturedAt"`
			Latitude           float64   `json:"latitude"`
			Longitude          float64   `json:"longitude"`
			LocationAcquiredAt time.Time `json:"locationAcquiredAt"`
			IdempotencyKey     string    `json:"idempotencyKey"`
		} `json:"evidence"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !engine.ValidStage(models.Stage(input.Target)) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid target stage"})
		return
	}

	req := engine.AdvanceRequest{
		Target:   models.Stage(input.Target),
		Actor:    actor,
		Override: input.Override,
	}
	if input.Evidence != nil {
		req.Evidence = &engine.EvidencePayload{
			Media:              models.MediaRef{URL: input.Evidence.MediaURL, CapturedAt: input.Evidence.CapturedAt},
			Location:           models.Coordinate{Latitude: input.Evidence.Latitude, Longitude: input.Evidence.Longitude},
			LocationAcquiredAt: input.Evidence.LocationAcquiredAt,
			IdempotencyKey:     input.Evidence.IdempotencyKey,
		}
	}

	issue, err := Engine.Advance(c.Request.Context(), issueID, req)
	if err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, issueView(issue, actor.ID))
}

// ReassignIssueDepartment moves a wrongly-routed issue to another department
func ReassignIssueDepartment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	issueID, ok := issueIDFromParam(c)
	if !ok {
		return
	}

	var input struct {
		Department string `json:"department" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	issue, err := Engine.ReassignDepartment(c.Request.Context(), issueID, actor, input.Department)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, issueView(issue, actor.ID))
}

// GetUnroutedIssues lists issues no configured department services
func GetUnroutedIssues(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	issues, err := Engine.UnroutedIssues(c.Request.Context(), actor)
	if err != nil {
		respondEngineError(c, err)
		return
	}

	views := make([]gin.H, 0, len(issues))
	for i := range issues {
		views = append(views, issueView(&issues[i], actor.ID))
	}
	c.JSON(http.StatusOK, views)
}

// GetIssueAnalytics returns analytical data about issues. Everything here
// is computed from projector output, never from ad hoc status derivation.
func GetIssueAnalytics(c *gin.Context) {
	issues, err := Engine.ListIssues(c.Request.Context(), engine.ListFilter{Sort: engine.SortNewest})
	if err != nil {
		respondEngineError(c, err)
		return
	}

	countsByStatus := engine.CountsByStatus(issues)

	countsByCategory := make(map[models.IssueCategory]int)
	for _, issue := range issues {
		countsByCategory[issue.Category]++
	}

	// Last 7 days of reports
	var last7Days []gin.H
	for i := 6; i >= 0; i-- {
		date := time.Now().AddDate(0, 0, -i)
		date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
		nextDate := date.AddDate(0, 0, 1)

		count := 0
		for _, issue := range issues {
			if !issue.CreatedAt.Before(date) && issue.CreatedAt.Before(nextDate) {
				count++
			}
		}
		last7Days = append(last7Days, gin.H{
			"date":  date.Format("2006-01-02"),
			"count": count,
		})
	}

	// Top issues by net credibility
	byCredibility := engine.Sort(issues, engine.SortCredibility)
	if len(byCredibility) > 5 {
		byCredibility = byCredibility[:5]
	}
	topIssues := make([]gin.H, 0, len(byCredibility))
	for i := range byCredibility {
		issue := &byCredibility[i]
		topIssues = append(topIssues, gin.H{
			"id":             issue.ID,
			"title":          issue.Title,
			"category":       issue.Category,
			"status":         engine.StatusLabel(issue),
			"netCredibility": issue.Verification.NetCredibility(),
		})
	}

	openIssues := countsByStatus[models.StageReported] +
		countsByStatus[models.StageVerified] +
		countsByStatus[models.StageInProgress]

	c.JSON(http.StatusOK, gin.H{
		"countsByStatus":   countsByStatus,
		"countsByCategory": countsByCategory,
		"last7Days":        last7Days,
		"topIssues":        topIssues,
		"totalIssues":      len(issues),
		"openIssues":       openIssues,
	})
}

// RecentIssues returns the most recent issues for the map view
func RecentIssues(c *gin.Context) {
	issues, err := Engine.ListIssues(c.Request.Context(), engine.ListFilter{Sort: engine.SortNewest})
	if err != nil {
		respondEngineError(c, err)
		return
	}
	if len(issues) > 19 {
		issues = issues[:19]
	}

	type IssueResponse struct {
		ID        string               `json:"id"`
		Title     string               `json:"title"`
		Latitude  float64              `json:"latitude"`
		Longitude float64              `json:"longitude"`
		Category  models.IssueCategory `json:"category"`
		Status    models.Stage         `json:"status"`
		CreatedAt time.Time            `json:"createdAt"`
	}

	response := make([]IssueResponse, 0, len(issues))
	for i := range issues {
		issue := &issues[i]
		response = append(response, IssueResponse{
			ID:        issue.ID.Hex(),
			Title:     issue.Title,
			Latitude:  issue.Location.Latitude,
			Longitude: issue.Location.Longitude,
			Category:  issue.Category,
			Status:    engine.StatusLabel(issue),
			CreatedAt: issue.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, response)
}
