package domain

// Traffic channels assigned by the classifier, in rough priority order.
const (
	ChannelEmail         = "email"
	ChannelAffiliate     = "affiliate"
	ChannelPaidSearch    = "paid_search"
	ChannelPaidSocial    = "paid_social"
	ChannelPaidVideo     = "paid_video"
	ChannelPaidShopping  = "paid_shopping"
	ChannelPaidNative    = "paid_native"
	ChannelDirect        = "direct"
	ChannelOrganicSearch = "organic_search"
	ChannelOrganicSocial = "organic_social"
	ChannelOrganicVideo  = "organic_video"
	ChannelReferral      = "referral"
	ChannelOther         = "other"
)

// Non-paid platforms map 1:1 from the channel.
const (
	PlatformDirect        = "direct"
	PlatformEmail         = "email"
	PlatformAffiliate     = "affiliate"
	PlatformReferral      = "referral"
	PlatformOrganicSearch = "organic_search"
	PlatformOrganicSocial = "organic_social"
	PlatformOrganicVideo  = "organic_video"
	PlatformOther         = "other"
)

// Paid advertising platforms.
const (
	PlatformFacebookAds        = "facebook_ads"
	PlatformInstagramAds       = "instagram_ads"
	PlatformMetaReels          = "meta_reels_ads"
	PlatformMetaAdvantagePlus  = "meta_advantage_plus"
	PlatformTikTokAds          = "tiktok_ads"
	PlatformTikTokSpark        = "tiktok_spark_ads"
	PlatformTikTokCreator      = "tiktok_creator_ads"
	PlatformTikTokTopView      = "tiktok_topview_ads"
	PlatformGoogleSearchAds    = "google_search_ads"
	PlatformGoogleShoppingAds  = "google_shopping_ads"
	PlatformGoogleDisplayAds   = "google_display_ads"
	PlatformGooglePMax         = "google_performance_max"
	PlatformGoogleDiscoveryAds = "google_discovery_ads"
	PlatformGoogleAppAds       = "google_app_ads"
	PlatformYouTubeAds         = "youtube_ads"
	PlatformBingAds            = "bing_ads"
	PlatformBingShoppingAds    = "bing_shopping_ads"
	PlatformLinkedInAds        = "linkedin_ads"
	PlatformLinkedInInMail     = "linkedin_inmail_ads"
	PlatformLinkedInSponsored  = "linkedin_sponsored_content"
	PlatformTwitterAds         = "twitter_ads"
	PlatformPinterestAds       = "pinterest_ads"
	PlatformSnapchatAds        = "snapchat_ads"
	PlatformRedditAds          = "reddit_ads"
	PlatformCriteo             = "criteo"
	PlatformOutbrain           = "outbrain"
	PlatformTaboola            = "taboola"
	PlatformOtherPaid          = "other_paid"
)

// Journey lifecycle statuses.
const (
	JourneyStatusActive    = "active"
	JourneyStatusConverted = "converted"
	JourneyStatusDormant   = "dormant"
)

// Attribution result views.
const (
	AttributionTypePlatform     = "platform"
	AttributionTypeDeduplicated = "deduplicated"
)

// Attribution model names.
const (
	ModelLastClick     = "last_click"
	ModelFirstClick    = "first_click"
	ModelLinear        = "linear"
	ModelPositionBased = "position_based"
	ModelTimeDecay     = "time_decay"
	ModelJShaped       = "j_shaped"
)
