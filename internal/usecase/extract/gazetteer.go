package extract

import "sort"

// brandAliases maps every known bank mention, colloquial or legal, to its
// canonical brand. Keys are matched longest-first so 中国工商银行 wins over 工商银行.
var brandAliases = map[string]string{
	"中国工商银行":   "中国工商银行",
	"工商银行":     "中国工商银行",
	"工行":       "中国工商银行",
	"中国农业银行":   "中国农业银行",
	"农业银行":     "中国农业银行",
	"农行":       "中国农业银行",
	"中国银行":     "中国银行",
	"中行":       "中国银行",
	"中国建设银行":   "中国建设银行",
	"建设银行":     "中国建设银行",
	"建行":       "中国建设银行",
	"交通银行":     "交通银行",
	"交行":       "交通银行",
	"招商银行":     "招商银行",
	"招行":       "招商银行",
	"中国邮政储蓄银行": "中国邮政储蓄银行",
	"邮政储蓄银行":   "中国邮政储蓄银行",
	"邮储银行":     "中国邮政储蓄银行",
	"邮储":       "中国邮政储蓄银行",
	"中信银行":     "中信银行",
	"中国光大银行":   "中国光大银行",
	"光大银行":     "中国光大银行",
	"华夏银行":     "华夏银行",
	"中国民生银行":   "中国民生银行",
	"民生银行":     "中国民生银行",
	"广发银行":     "广发银行",
	"平安银行":     "平安银行",
	"上海浦东发展银行": "上海浦东发展银行",
	"浦发银行":     "上海浦东发展银行",
	"浦发":       "上海浦东发展银行",
	"兴业银行":     "兴业银行",
	"北京银行":     "北京银行",
	"上海银行":     "上海银行",
	"江苏银行":     "江苏银行",
	"宁波银行":     "宁波银行",
	"南京银行":     "南京银行",
	"杭州银行":     "杭州银行",
	"徽商银行":     "徽商银行",
	"农村商业银行":   "农村商业银行",
	"农商银行":     "农村商业银行",
	"农商行":      "农村商业银行",
	"农村信用社":    "农村信用社",
	"信用社":      "农村信用社",
	"村镇银行":     "村镇银行",
}

// brandKeys is brandAliases keys sorted by descending rune length.
var brandKeys = sortedByRuneLenDesc(brandAliases)

// branchSuffixes are markers that a name segment denotes a branch entity.
// A query ending in one of these reads as a complete legal name.
var branchSuffixes = []string{
	"支行", "分行", "营业部", "分理处", "储蓄所", "营业厅", "办事处",
}

// locations is a compact gazetteer of provinces and major cities. District
// and county mentions are caught by the 省/市/县/区 suffix heuristic instead.
var locations = []string{
	"北京", "上海", "天津", "重庆",
	"河北", "山西", "辽宁", "吉林", "黑龙江", "江苏", "浙江", "安徽",
	"福建", "江西", "山东", "河南", "湖北", "湖南", "广东", "海南",
	"四川", "贵州", "云南", "陕西", "甘肃", "青海", "台湾",
	"内蒙古", "广西", "西藏", "宁夏", "新疆",
	"广州", "深圳", "成都", "杭州", "武汉", "西安", "苏州", "南京",
	"郑州", "长沙", "东莞", "沈阳", "青岛", "合肥", "佛山", "无锡",
	"宁波", "大连", "厦门", "济南", "哈尔滨", "长春", "昆明", "南宁",
	"石家庄", "太原", "福州", "南昌", "贵阳", "兰州", "乌鲁木齐",
}

// locationKeys is the gazetteer sorted by descending rune length.
var locationKeys = func() []string {
	keys := make([]string, len(locations))
	copy(keys, locations)
	sort.Slice(keys, func(i, j int) bool {
		return len([]rune(keys[i])) > len([]rune(keys[j]))
	})
	return keys
}()

// locationSuffixes close an administrative-division token (中关村 + 街道).
var locationSuffixes = []string{
	"省", "市", "县", "区", "镇", "乡", "街道", "开发区", "新区",
}

// stopwords are query chatter that carries no retrieval signal.
var stopwords = map[string]struct{}{
	"的": {}, "是": {}, "在": {}, "我": {}, "想": {}, "要": {},
	"查": {}, "查询": {}, "请问": {}, "帮": {}, "帮我": {}, "一下": {},
	"多少": {}, "什么": {}, "哪个": {}, "联行号": {}, "行号": {}, "号码": {},
	"股份有限公司": {}, "有限责任公司": {}, "有限公司": {},
	"the": {}, "of": {}, "a": {}, "an": {}, "is": {}, "for": {},
}

func sortedByRuneLenDesc(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		li, lj := len([]rune(keys[i])), len([]rune(keys[j]))
		if li != lj {
			return li > lj
		}
		return keys[i] < keys[j]
	})
	return keys
}
