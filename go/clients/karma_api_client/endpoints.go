package karma_api_client

const (
	// API Endpoints
	LoginEndpoint            = "/login"
	LogoutEndpoint           = "/logout"
	URLToUserEndpoint        = "/url_to_user"
	AddFriendEndpoint        = "/add_friend"
	GetUserJSONEndpoint      = "/get_user_json"
	GetQuestsEndpoint        = "/get_quests_json"
	UploadEndpoint           = "/upload_endpoint"
	DynamsoftLicenseEndpoint = "/get_dynamsoft_license"
)
