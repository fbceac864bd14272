package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"weathermap/internal/artifact"
	"weathermap/internal/auth"
	"weathermap/internal/bundle"
	"weathermap/internal/catalog"
	"weathermap/internal/mapconf"
	"weathermap/internal/task"
	"weathermap/internal/topology"
)

// Options carries the collaborators the HTTP surface exposes.
type Options struct {
	Auth      *auth.Service
	Directory *catalog.Directory
	Topology  *topology.Provider
	Tasks     *task.Manager
	Artifacts *artifact.Store
	// BaseURL prefixes the artifact URLs returned by task status; it is
	// applied at read time, never stored.
	BaseURL string
	// DataDir is served under /static (final maps live there).
	DataDir string
}

// API registers and serves the HTTP surface.
type API struct {
	opts Options
}

// NewAPI creates the handler set.
func NewAPI(opts Options) *API {
	return &API{opts: opts}
}

// RegisterRoutes registers all routes on the provided gin engine.
func (a *API) RegisterRoutes(router *gin.Engine) {
	router.POST("/login", a.Login)
	router.POST("/register", a.Register)

	authed := router.Group("", TokenRequired(a.opts.Auth))
	{
		authed.GET("/get-device-info/:ip", a.DeviceInfo)
		authed.GET("/get-device-neighbors/:ip", a.DeviceNeighbors)
		authed.GET("/get-full-neighbors/:ip", a.FullNeighbors)
		authed.POST("/api/devices", a.InitialDevice)
		authed.GET("/config-template", a.ConfigTemplate)
		authed.GET("/groups", a.Groups)
		authed.POST("/create-map", a.CreateMap)
		authed.GET("/task-status/:id", a.TaskStatus)
		authed.GET("/task-bundle/:id", a.TaskBundle)
	}

	admin := authed.Group("/users", AdminRequired())
	{
		admin.GET("", a.Users)
		admin.PUT("/change-privileges/:id/:privilege", a.ChangePrivileges)
		admin.DELETE("/:id", a.DeleteUser)
	}

	if a.opts.DataDir != "" {
		router.Static("/static", a.opts.DataDir)
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login authenticates a user and returns a bearer token.
func (a *API) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Could not verify"})
		return
	}
	token, user, err := a.opts.Auth.Login(req.Username, req.Password)
	if err != nil {
		log.Warn().Str("username", req.Username).Msg("login rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid credentials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

type registerRequest struct {
	Username  string         `json:"username"`
	Password  string         `json:"password"`
	Privilege auth.Privilege `json:"privilege"`
}

// Register creates a new account; the default privilege is viewer.
func (a *API) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Missing username or password"})
		return
	}
	user, err := a.opts.Auth.Register(req.Username, req.Password, req.Privilege)
	switch {
	case errors.Is(err, auth.ErrUsernameTaken):
		c.JSON(http.StatusConflict, gin.H{"message": err.Error()})
	case errors.Is(err, auth.ErrInvalidPrivilege):
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"message": "registration failed"})
	default:
		c.JSON(http.StatusCreated, gin.H{"message": "User registered successfully", "user": user})
	}
}

// Users lists every account. Admin only.
func (a *API) Users(c *gin.Context) {
	c.JSON(http.StatusOK, a.opts.Auth.Users())
}

// ChangePrivileges updates an account's privilege level. Admin only.
func (a *API) ChangePrivileges(c *gin.Context) {
	user, err := a.opts.Auth.ChangePrivilege(c.Param("id"), auth.Privilege(c.Param("privilege")))
	switch {
	case errors.Is(err, auth.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
	case errors.Is(err, auth.ErrInvalidPrivilege):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid privilege level"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"message": "update failed"})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "Privilege updated", "user": user})
	}
}

// DeleteUser removes an account. Admin only; self-deletion is rejected.
func (a *API) DeleteUser(c *gin.Context) {
	requester, _ := currentUser(c)
	err := a.opts.Auth.Delete(c.Param("id"), requester.ID)
	switch {
	case errors.Is(err, auth.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
	case errors.Is(err, auth.ErrSelfDelete):
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"message": "delete failed"})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
	}
}

// DeviceInfo retrieves device type, model, and hostname by IP address.
func (a *API) DeviceInfo(c *gin.Context) {
	device, ok, err := a.opts.Topology.DeviceInfo(c.Request.Context(), c.Param("ip"))
	if err != nil || !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Device not found"})
		return
	}
	c.JSON(http.StatusOK, device)
}

// DeviceNeighbors returns the CDP adjacencies of a device.
func (a *API) DeviceNeighbors(c *gin.Context) {
	neighbors, ok, err := a.opts.Topology.Neighbors(c.Request.Context(), c.Param("ip"))
	if err != nil || !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Device not found or has no neighbors"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"neighbors": neighbors})
}

// FullNeighbors returns CDP adjacencies plus ARP/IP-scan findings.
func (a *API) FullNeighbors(c *gin.Context) {
	neighbors, ok, err := a.opts.Topology.FullNeighbors(c.Request.Context(), c.Param("ip"))
	if err != nil || !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Device not found or has no neighbors"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"neighbors": neighbors})
}

type initialDeviceRequest struct {
	IP string `json:"ip"`
}

// InitialDevice resolves the first device a map is started from.
func (a *API) InitialDevice(c *gin.Context) {
	var req initialDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IP == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "IP address is required"})
		return
	}
	device, ok, err := a.opts.Topology.DeviceInfo(c.Request.Context(), req.IP)
	if err != nil || !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Device not found"})
		return
	}
	c.JSON(http.StatusOK, device)
}

// ConfigTemplate serves the weathermap configuration template.
func (a *API) ConfigTemplate(c *gin.Context) {
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(mapconf.Template))
}

// Groups lists the registered installation groups.
func (a *API) Groups(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": a.opts.Directory.Groups()})
}

// CreateMap accepts a multipart submission, authorizes it against the
// resolved installation group, and fans it out into one rendering task per
// installation. The 202 response returns before any task runs.
func (a *API) CreateMap(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User authentication failed."})
		return
	}

	// read-only accounts are rejected up front, before the request body or
	// the group is even looked at
	if err := auth.AuthorizeMapCreation(user.Privilege, nil); err != nil {
		log.Warn().Str("username", user.Username).Str("privilege", string(user.Privilege)).
			Err(err).Msg("map creation denied")
		c.JSON(http.StatusForbidden, gin.H{"error": "Permission Denied: " + err.Error()})
		return
	}

	imageHeader, err := c.FormFile("map_image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Map image is required"})
		return
	}
	groupIDRaw := c.PostForm("cacti_group_id")
	mapName := c.PostForm("map_name")
	configContent := c.PostForm("config_content")
	if groupIDRaw == "" || mapName == "" || configContent == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required form data: cacti_group_id, map_name, or config_content"})
		return
	}
	if mapName != filepath.Base(mapName) || strings.ContainsAny(mapName, `/\`) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid map_name"})
		return
	}
	groupID, err := strconv.Atoi(groupIDRaw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cacti_group_id format"})
		return
	}

	installations, found := a.opts.Directory.InstallationsByGroup(groupID)
	if !found || len(installations) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Cacti group with ID %d not found", groupID)})
		return
	}

	if err := auth.AuthorizeMapCreation(user.Privilege, installations); err != nil {
		log.Warn().Str("username", user.Username).Str("privilege", string(user.Privilege)).
			Err(err).Msg("map creation denied")
		c.JSON(http.StatusForbidden, gin.H{"error": "Permission Denied: " + err.Error()})
		return
	}

	imageBytes, err := readUpload(imageHeader)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read map image"})
		return
	}

	refs := a.opts.Tasks.Dispatch(task.Submission{
		Image:   imageBytes,
		Config:  configContent,
		MapName: mapName,
	}, installations)

	c.JSON(http.StatusAccepted, gin.H{
		"message": fmt.Sprintf("Map creation process has been started for %d installations.", len(installations)),
		"tasks":   refs,
	})
}

type taskStatusResponse struct {
	ID        string      `json:"id"`
	Status    task.Status `json:"status"`
	Message   string      `json:"message"`
	UpdatedAt string      `json:"updated_at"`
}

// TaskStatus polls one task. For successful tasks the stored artifact name
// is resolved into a download URL here, so the visible address follows the
// configured base URL without touching stored state.
func (a *API) TaskStatus(c *gin.Context) {
	t, found := a.opts.Tasks.Get(c.Param("id"))
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}
	resp := taskStatusResponse{
		ID:        t.ID,
		Status:    t.Status,
		Message:   t.Message,
		UpdatedAt: t.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if t.Status == task.StatusSuccess && t.ArtifactName != "" {
		resp.Message = a.opts.BaseURL + "/static/final_maps/" + t.ArtifactName
	}
	c.JSON(http.StatusOK, resp)
}

// TaskBundle serves a zip of the artifact triple behind a successful task.
func (a *API) TaskBundle(c *gin.Context) {
	t, found := a.opts.Tasks.Get(c.Param("id"))
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}
	if t.Status != task.StatusSuccess || t.ArtifactName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Map is not ready"})
		return
	}
	imagePath, configPath, finalPath := a.opts.Artifacts.Triple(t.ArtifactName)
	dest := filepath.Join(a.opts.DataDir, "bundles", strings.TrimSuffix(t.ArtifactName, ".png")+".zip")
	if _, err := bundle.Build(c.Request.Context(), dest, []string{imagePath, configPath, finalPath}); err != nil {
		log.Error().Str("task_id", t.ID).Err(err).Msg("bundle build failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not build bundle"})
		return
	}
	c.FileAttachment(dest, "map-"+t.ID+".zip")
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer func() { _ = f.Close() }()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return data, nil
}
